// Package pion adapts github.com/pion/webrtc to the rtc engine interfaces.
//
// Every pion call runs on a private worker loop. Results and pion callbacks
// are handed to the signaling poster, which is the session's owning loop.
package pion

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/internal/runloop"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// Device labels reported by EnumerateDevices.
const (
	AudioSourceLabel = "pion-audio"
	VideoSourceLabel = "pion-video"
)

type config struct {
	signaling    runloop.Poster
	loopback     bool
	multicastDNS bool
	portMin      uint16
	portMax      uint16
}

// An Option customizes the engine.
type Option func(*config)

// WithSignaling delivers observer callbacks through poster.
func WithSignaling(poster runloop.Poster) Option {
	return func(cfg *config) {
		cfg.signaling = poster
	}
}

// WithLoopbackCandidates gathers candidates on loopback interfaces.
func WithLoopbackCandidates(enabled bool) Option {
	return func(cfg *config) {
		cfg.loopback = enabled
	}
}

// WithMulticastDNS enables mDNS candidate gathering.
func WithMulticastDNS(enabled bool) Option {
	return func(cfg *config) {
		cfg.multicastDNS = enabled
	}
}

// WithUDPPortRange limits the ephemeral UDP ports used for ICE.
func WithUDPPortRange(min, max uint16) Option {
	return func(cfg *config) {
		cfg.portMin, cfg.portMax = min, max
	}
}

// An Engine is an rtc.Engine backed by pion.
type Engine struct {
	api       *webrtc.API
	worker    *runloop.Loop
	signaling runloop.Poster
	ownLoop   *runloop.Loop
}

var _ rtc.Engine = (*Engine)(nil)

// New creates an Engine. Without WithSignaling the engine runs its own
// signaling loop.
func New(options ...Option) (*Engine, error) {
	var cfg config
	for _, o := range options {
		o(&cfg)
	}

	se := webrtc.SettingEngine{
		LoggerFactory: loggerFactory{},
	}
	se.SetIncludeLoopbackCandidate(cfg.loopback)
	if !cfg.multicastDNS {
		se.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}
	if cfg.portMin != 0 || cfg.portMax != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.portMin, cfg.portMax); err != nil {
			return nil, errors.Wrap(err, "invalid UDP port range")
		}
	}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, errors.Wrap(err, "failed to register codecs")
	}

	e := &Engine{
		api:       webrtc.NewAPI(webrtc.WithSettingEngine(se), webrtc.WithMediaEngine(me)),
		worker:    runloop.New("pion-worker"),
		signaling: cfg.signaling,
	}
	if e.signaling == nil {
		e.ownLoop = runloop.New("pion-signaling")
		e.signaling = e.ownLoop
	}
	return e, nil
}

// NewPeerConnection creates a pion peer connection reporting to observer.
func (e *Engine) NewPeerConnection(cfg rtc.Configuration, observer rtc.Observer) (rtc.PeerConnection, error) {
	var (
		pc  *peerConnection
		err error
	)
	serr := e.worker.Send(context.Background(), func(ctx context.Context) {
		var native *webrtc.PeerConnection
		native, err = e.api.NewPeerConnection(toConfiguration(cfg))
		if err != nil {
			return
		}
		pc = newPeerConnection(e, native, observer)
	})
	if serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create peer connection")
	}
	return pc, nil
}

// CreateMediaStream builds a local stream of static-sample tracks.
func (e *Engine) CreateMediaStream(audioSource, videoSource string) (rtc.MediaStream, error) {
	if audioSource == "" && videoSource == "" {
		return nil, errors.New("no media source requested")
	}

	ms := &mediaStream{id: uuid.NewString()}
	if audioSource != "" {
		if audioSource != AudioSourceLabel {
			return nil, fmt.Errorf("unknown audio source: %s", audioSource)
		}
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio-"+ms.id, ms.id)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create audio track")
		}
		ms.tracks = append(ms.tracks, track)
	}
	if videoSource != "" {
		if videoSource != VideoSourceLabel {
			return nil, fmt.Errorf("unknown video source: %s", videoSource)
		}
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video-"+ms.id, ms.id)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create video track")
		}
		ms.tracks = append(ms.tracks, track)
	}
	return ms, nil
}

// EnumerateDevices returns the static sources of kind.
func (e *Engine) EnumerateDevices(kind rtc.DeviceType) ([]string, error) {
	switch kind {
	case rtc.DeviceAudio:
		return []string{AudioSourceLabel}, nil
	case rtc.DeviceVideo:
		return []string{VideoSourceLabel}, nil
	}
	return nil, fmt.Errorf("unknown device type: %s", kind)
}

// Close stops the worker and, if the engine owns it, the signaling loop.
func (e *Engine) Close() error {
	e.worker.Close()
	if e.ownLoop != nil {
		e.ownLoop.Close()
	}
	log.Debug().Msg("pion engine closed")
	return nil
}

// post runs fn on the signaling loop.
func (e *Engine) post(fn func()) {
	e.signaling.Post(func(ctx context.Context) {
		fn()
	})
}

func toConfiguration(cfg rtc.Configuration) webrtc.Configuration {
	var out webrtc.Configuration
	for _, s := range cfg.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		out.ICEServers = append(out.ICEServers, server)
	}
	return out
}
