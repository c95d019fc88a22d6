package pion

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

const minimalSDP = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n"

func TestValidateSessionDescription(t *testing.T) {
	assert.NoError(t, validateSessionDescription(rtc.SessionDescription{Type: "offer", SDP: minimalSDP}))
	assert.NoError(t, validateSessionDescription(rtc.SessionDescription{Type: "rollback"}))
	assert.Error(t, validateSessionDescription(rtc.SessionDescription{Type: "bogus", SDP: minimalSDP}))
	assert.Error(t, validateSessionDescription(rtc.SessionDescription{Type: "answer", SDP: "not sdp"}))
}

func TestSessionDescriptionConversion(t *testing.T) {
	native, err := toSessionDescription(rtc.SessionDescription{Type: "pranswer", SDP: minimalSDP})
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypePranswer, native.Type)

	desc, ok := fromSessionDescription(&native)
	assert.True(t, ok)
	assert.Equal(t, rtc.SessionDescription{Type: "pranswer", SDP: minimalSDP}, desc)

	_, ok = fromSessionDescription(nil)
	assert.False(t, ok)
}

func TestValidateCandidate(t *testing.T) {
	assert.NoError(t, validateCandidate("candidate:1966762134 1 udp 2122260223 192.168.1.7 54321 typ host"))
	assert.NoError(t, validateCandidate(""))
	assert.Error(t, validateCandidate("candidate:garbage"))
}

func TestCandidateInit(t *testing.T) {
	init := toCandidateInit(rtc.ICECandidate{SDP: "candidate:x", SDPMid: "0", SDPMLineIndex: 1})
	require.NotNil(t, init.SDPMid)
	assert.Equal(t, "0", *init.SDPMid)
	require.NotNil(t, init.SDPMLineIndex)
	assert.Equal(t, uint16(1), *init.SDPMLineIndex)

	init = toCandidateInit(rtc.ICECandidate{SDP: "candidate:x"})
	assert.Nil(t, init.SDPMid)
}
