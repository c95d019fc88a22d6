package pion

import (
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

func parseSDPType(s string) (webrtc.SDPType, error) {
	switch s {
	case "offer", "pranswer", "answer", "rollback":
		return webrtc.NewSDPType(s), nil
	}
	return 0, fmt.Errorf("unknown sdp type: %q", s)
}

func validateSessionDescription(desc rtc.SessionDescription) error {
	typ, err := parseSDPType(desc.Type)
	if err != nil {
		return err
	}
	if typ == webrtc.SDPTypeRollback {
		return nil
	}
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return errors.Wrap(err, "invalid session description")
	}
	return nil
}

func toSessionDescription(desc rtc.SessionDescription) (webrtc.SessionDescription, error) {
	typ, err := parseSDPType(desc.Type)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: typ, SDP: desc.SDP}, nil
}

func fromSessionDescription(desc *webrtc.SessionDescription) (rtc.SessionDescription, bool) {
	if desc == nil {
		return rtc.SessionDescription{}, false
	}
	return rtc.SessionDescription{Type: desc.Type.String(), SDP: desc.SDP}, true
}

func validateCandidate(candidate string) error {
	raw := strings.TrimPrefix(candidate, "candidate:")
	if raw == "" {
		// end of candidates
		return nil
	}
	if _, err := ice.UnmarshalCandidate(raw); err != nil {
		return errors.Wrap(err, "invalid candidate")
	}
	return nil
}

func toCandidateInit(c rtc.ICECandidate) webrtc.ICECandidateInit {
	init := webrtc.ICECandidateInit{Candidate: c.SDP}
	if c.SDPMid != "" {
		mid := c.SDPMid
		init.SDPMid = &mid
	}
	index := c.SDPMLineIndex
	init.SDPMLineIndex = &index
	return init
}

func fromCandidate(c *webrtc.ICECandidate) rtc.ICECandidate {
	init := c.ToJSON()
	out := rtc.ICECandidate{SDP: init.Candidate}
	if init.SDPMid != nil {
		out.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		out.SDPMLineIndex = *init.SDPMLineIndex
	}
	return out
}
