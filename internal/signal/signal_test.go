package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtctunnel/rtcbackend/internal/crypt"
	"github.com/rtctunnel/rtcbackend/pkg/channels"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

func keyPairs(t *testing.T) (crypt.KeyPair, crypt.KeyPair) {
	k1, err := crypt.GenerateKeyPair()
	require.NoError(t, err)
	k2, err := crypt.GenerateKeyPair()
	require.NoError(t, err)
	return k1, k2
}

func TestSignaler(t *testing.T) {
	ch := channels.Must(channels.Get("memory://signal-test"))
	k1, k2 := keyPairs(t)
	a, b := New(ch, k1, k2.Public), New(ch, k2, k1.Public)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	offer := &rtc.SessionDescription{Type: "offer", SDP: "v=0\r\n"}
	require.NoError(t, a.Send(ctx, Message{Type: TypeDescription, Description: offer}))
	candidate := &rtc.ICECandidate{SDP: "candidate:1 1 udp 1 127.0.0.1 9 typ host", SDPMid: "0"}
	require.NoError(t, a.Send(ctx, Message{Type: TypeCandidate, Candidate: candidate}))

	msg, err := b.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, TypeDescription, msg.Type)
	assert.Equal(t, offer, msg.Description)

	msg, err = b.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, TypeCandidate, msg.Type)
	assert.Equal(t, candidate, msg.Candidate)
}

func TestSignalerRejectsForeignMessages(t *testing.T) {
	ch := channels.Must(channels.Get("memory://signal-foreign"))
	k1, k2 := keyPairs(t)
	k3, _ := keyPairs(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// k3 pretends to be k1
	forged := New(ch, crypt.KeyPair{Public: k1.Public, Private: k3.Private}, k2.Public)
	require.NoError(t, forged.Send(ctx, Message{Type: TypeDescription, Description: &rtc.SessionDescription{Type: "offer"}}))
	_, err := New(ch, k2, k1.Public).Recv(ctx)
	assert.ErrorIs(t, err, crypt.ErrInvalidMessage)

	require.NoError(t, ch.Send(ctx, k2.Public.String()+"/"+k1.Public.String(), "0OIl"))
	_, err = New(ch, k2, k1.Public).Recv(ctx)
	assert.Error(t, err)
}

func TestSignalerRejectsEmptyMessages(t *testing.T) {
	ch := channels.Must(channels.Get("memory://signal-empty"))
	k1, k2 := keyPairs(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, New(ch, k1, k2.Public).Send(ctx, Message{Type: TypeCandidate}))
	_, err := New(ch, k2, k1.Public).Recv(ctx)
	assert.Error(t, err)
}

func TestSignalerOfferer(t *testing.T) {
	ch := channels.Must(channels.Get("memory://signal-offerer"))
	k1, k2 := keyPairs(t)
	a, b := New(ch, k1, k2.Public), New(ch, k2, k1.Public)
	assert.NotEqual(t, a.Offerer(), b.Offerer())
	assert.Equal(t, k2.Public, a.Remote())
}
