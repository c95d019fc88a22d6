// Package signal exchanges sealed negotiation messages between two peers over
// a rendezvous channel. A message from A to B travels on the key "B/A".
package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/internal/crypt"
	"github.com/rtctunnel/rtcbackend/pkg/channels"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// Message types.
const (
	TypeDescription = "description"
	TypeCandidate   = "candidate"
)

// A Message is one negotiation step.
type Message struct {
	Type        string                  `json:"type"`
	Description *rtc.SessionDescription `json:"description,omitempty"`
	Candidate   *rtc.ICECandidate       `json:"candidate,omitempty"`
}

// A Signaler sends and receives messages between a local key pair and one
// remote peer.
type Signaler struct {
	ch     channels.Channel
	local  crypt.KeyPair
	remote crypt.Key
}

// New creates a Signaler.
func New(ch channels.Channel, local crypt.KeyPair, remote crypt.Key) *Signaler {
	return &Signaler{ch: ch, local: local, remote: remote}
}

// Remote returns the remote peer's key.
func (s *Signaler) Remote() crypt.Key {
	return s.remote
}

// Offerer reports whether the local peer makes the offer. The peer with the
// smaller key offers.
func (s *Signaler) Offerer() bool {
	return s.local.Public.Less(s.remote)
}

// Send seals msg for the remote peer.
func (s *Signaler) Send(ctx context.Context, msg Message) error {
	bs, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error encoding signal message: %w", err)
	}
	sealed, err := s.local.Seal(s.remote, bs)
	if err != nil {
		return err
	}

	address := s.remote.String() + "/" + s.local.Public.String()
	log.Debug().Str("type", msg.Type).Str("address", address).Msg("sending signal")
	if err := s.ch.Send(ctx, address, base58.Encode(sealed)); err != nil {
		return fmt.Errorf("error sending signal message: %w", err)
	}
	return nil
}

// Recv waits for the next message from the remote peer.
func (s *Signaler) Recv(ctx context.Context) (Message, error) {
	address := s.local.Public.String() + "/" + s.remote.String()
	encoded, err := s.ch.Recv(ctx, address)
	if err != nil {
		return Message{}, fmt.Errorf("error receiving signal message: %w", err)
	}

	sealed, err := base58.Decode(encoded)
	if err != nil {
		return Message{}, fmt.Errorf("signal message is not base58: %w", err)
	}
	opened, err := s.local.Open(s.remote, sealed)
	if err != nil {
		return Message{}, fmt.Errorf("error decrypting signal message: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(opened, &msg); err != nil {
		return Message{}, fmt.Errorf("invalid signal message: %w", err)
	}
	switch {
	case msg.Type == TypeDescription && msg.Description != nil:
	case msg.Type == TypeCandidate && msg.Candidate != nil:
	default:
		return Message{}, fmt.Errorf("invalid signal message of type %q", msg.Type)
	}
	log.Debug().Str("type", msg.Type).Str("address", address).Msg("received signal")
	return msg, nil
}
