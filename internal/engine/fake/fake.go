// Package fake provides a scripted in-memory engine. It records every call
// and leaves completions to the caller, unless it is told to respond on its
// own with WithAutoRespond.
package fake

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rtctunnel/rtcbackend/internal/runloop"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// ErrRefused is a generic scripted failure.
var ErrRefused = errors.New("fake: refused")

// A Call is one recorded engine call.
type Call struct {
	Method    string
	RequestID int
	Arg       interface{}
}

type options struct {
	poster  runloop.Poster
	devices map[rtc.DeviceType][]string
}

// An Option configures the fake Engine.
type Option func(*options)

// WithAutoRespond makes peer connections answer every request successfully
// by posting the callback to poster.
func WithAutoRespond(poster runloop.Poster) Option {
	return func(o *options) {
		o.poster = poster
	}
}

// WithDevices sets the labels returned by EnumerateDevices.
func WithDevices(kind rtc.DeviceType, labels ...string) Option {
	return func(o *options) {
		o.devices[kind] = labels
	}
}

// An Engine is a fake rtc.Engine.
type Engine struct {
	opts options

	// NewPeerConnectionErr, when set, is returned by NewPeerConnection.
	NewPeerConnectionErr error

	mu          sync.Mutex
	connections []*PeerConnection
	streams     int
	closed      bool
}

var _ rtc.Engine = (*Engine)(nil)

// New creates a new fake Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		opts: options{
			devices: map[rtc.DeviceType][]string{
				rtc.DeviceAudio: {"fake-microphone"},
				rtc.DeviceVideo: {"fake-camera"},
			},
		},
	}
	for _, o := range opts {
		o(&e.opts)
	}
	return e
}

// NewPeerConnection creates a fake peer connection.
func (e *Engine) NewPeerConnection(cfg rtc.Configuration, observer rtc.Observer) (rtc.PeerConnection, error) {
	if e.NewPeerConnectionErr != nil {
		return nil, e.NewPeerConnectionErr
	}
	pc := &PeerConnection{
		engine:   e,
		Observer: observer,
		config:   cfg,
	}
	e.mu.Lock()
	e.connections = append(e.connections, pc)
	e.mu.Unlock()
	return pc, nil
}

// Connections returns the peer connections created so far.
func (e *Engine) Connections() []*PeerConnection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*PeerConnection(nil), e.connections...)
}

// CreateMediaStream creates a fake local stream.
func (e *Engine) CreateMediaStream(audioSource, videoSource string) (rtc.MediaStream, error) {
	if audioSource == "" && videoSource == "" {
		return nil, fmt.Errorf("fake: no sources: %w", ErrRefused)
	}
	e.mu.Lock()
	e.streams++
	id := fmt.Sprintf("fake-stream-%d", e.streams)
	e.mu.Unlock()
	return &MediaStream{StreamID: id, Audio: audioSource, Video: videoSource}, nil
}

// EnumerateDevices returns the configured device labels.
func (e *Engine) EnumerateDevices(kind rtc.DeviceType) ([]string, error) {
	return append([]string(nil), e.opts.devices[kind]...), nil
}

// Close marks the engine closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// A MediaStream is a fake stream handle.
type MediaStream struct {
	StreamID string
	Audio    string
	Video    string
}

// ID returns the stream id.
func (s *MediaStream) ID() string {
	return s.StreamID
}

func validSDPType(typ string) bool {
	switch typ {
	case "offer", "pranswer", "answer", "rollback":
		return true
	}
	return false
}

func parseDescription(desc rtc.SessionDescription) error {
	if !validSDPType(desc.Type) {
		return fmt.Errorf("fake: unknown SDP type %q", desc.Type)
	}
	if desc.Type != "rollback" && !strings.HasPrefix(desc.SDP, "v=0") {
		return errors.New("fake: SDP must start with v=0")
	}
	return nil
}
