package peer

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/internal/backend"
	"github.com/rtctunnel/rtcbackend/internal/runloop"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

const eventBuffer = 64

// A Session drives one backend from ordinary goroutines. Every call is run
// on the session's loop and waits for its completion.
type Session struct {
	loop    *runloop.Loop
	backend *backend.Backend

	candidates   chan backend.ICECandidate
	dataChannels chan *backend.DataChannelHandler
	streams      chan *backend.MediaStream
	negotiation  chan struct{}
	iceStates    chan backend.ICEConnectionState

	mu           sync.Mutex
	localStreams []rtc.MediaStream

	closed *Cond
}

// NewSession creates a session on loop and applies cfg. loop must be the
// loop the engine delivers its callbacks to.
func NewSession(ctx context.Context, factory *backend.Factory, loop *runloop.Loop, cfg backend.Configuration) (*Session, error) {
	s := &Session{
		loop:         loop,
		candidates:   make(chan backend.ICECandidate, eventBuffer),
		dataChannels: make(chan *backend.DataChannelHandler, eventBuffer),
		streams:      make(chan *backend.MediaStream, eventBuffer),
		negotiation:  make(chan struct{}, 1),
		iceStates:    make(chan backend.ICEConnectionState, eventBuffer),
		closed:       NewCond(),
	}
	s.backend = factory.NewBackend(sessionClient{s})

	var err error
	if serr := s.do(ctx, func() {
		err = s.backend.SetConfiguration(cfg)
	}); serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) do(ctx context.Context, fn func()) error {
	return s.loop.Send(ctx, func(context.Context) {
		fn()
	})
}

// Candidates delivers the local ICE candidates.
func (s *Session) Candidates() <-chan backend.ICECandidate { return s.candidates }

// DataChannels delivers the data channels opened by the remote peer.
func (s *Session) DataChannels() <-chan *backend.DataChannelHandler { return s.dataChannels }

// Streams delivers the remote media streams.
func (s *Session) Streams() <-chan *backend.MediaStream { return s.streams }

// NegotiationNeeded fires when the session wants a new offer.
func (s *Session) NegotiationNeeded() <-chan struct{} { return s.negotiation }

// ICEConnectionStates delivers ICE connection state changes.
func (s *Session) ICEConnectionStates() <-chan backend.ICEConnectionState { return s.iceStates }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.closed.C }

func (s *Session) CreateOffer(ctx context.Context, options *backend.OfferOptions) (*backend.SessionDescription, error) {
	return s.describe(ctx, func(promise backend.SessionDescriptionPromise) {
		s.backend.CreateOffer(options, promise)
	})
}

func (s *Session) CreateAnswer(ctx context.Context, options *backend.AnswerOptions) (*backend.SessionDescription, error) {
	return s.describe(ctx, func(promise backend.SessionDescriptionPromise) {
		s.backend.CreateAnswer(options, promise)
	})
}

func (s *Session) describe(ctx context.Context, request func(backend.SessionDescriptionPromise)) (*backend.SessionDescription, error) {
	type result struct {
		desc *backend.SessionDescription
		err  error
	}
	done := make(chan result, 1)
	if err := s.do(ctx, func() {
		request(func(desc *backend.SessionDescription, err error) {
			done <- result{desc, err}
		})
	}); err != nil {
		return nil, err
	}
	select {
	case r := <-done:
		return r.desc, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) SetLocalDescription(ctx context.Context, desc backend.SessionDescription) error {
	return s.void(ctx, func(promise backend.VoidPromise) {
		s.backend.SetLocalDescription(desc, promise)
	})
}

func (s *Session) SetRemoteDescription(ctx context.Context, desc backend.SessionDescription) error {
	return s.void(ctx, func(promise backend.VoidPromise) {
		s.backend.SetRemoteDescription(desc, promise)
	})
}

func (s *Session) AddICECandidate(ctx context.Context, candidate backend.ICECandidate) error {
	return s.void(ctx, func(promise backend.VoidPromise) {
		s.backend.AddICECandidate(candidate, promise)
	})
}

func (s *Session) void(ctx context.Context, request func(backend.VoidPromise)) error {
	done := make(chan error, 1)
	if err := s.do(ctx, func() {
		request(func(err error) {
			done <- err
		})
	}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetStats collects the statistics of the whole connection.
func (s *Session) GetStats(ctx context.Context) (*backend.StatsResponse, error) {
	type result struct {
		res *backend.StatsResponse
		err error
	}
	done := make(chan result, 1)
	if err := s.do(ctx, func() {
		s.backend.GetStats("", func(res *backend.StatsResponse, err error) {
			done <- result{res, err}
		})
	}); err != nil {
		return nil, err
	}
	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LocalDescription returns the applied local description, if any.
func (s *Session) LocalDescription(ctx context.Context) (desc *backend.SessionDescription, err error) {
	err = s.do(ctx, func() {
		desc = s.backend.LocalDescription()
	})
	return desc, err
}

// RemoteDescription returns the applied remote description, if any.
func (s *Session) RemoteDescription(ctx context.Context) (desc *backend.SessionDescription, err error) {
	err = s.do(ctx, func() {
		desc = s.backend.RemoteDescription()
	})
	return desc, err
}

// SignalingState returns the current signaling state.
func (s *Session) SignalingState(ctx context.Context) (state backend.SignalingState, err error) {
	err = s.do(ctx, func() {
		state = s.backend.SignalingState()
	})
	return state, err
}

// CreateDataChannel opens a data channel wrapped as a net.Conn.
func (s *Session) CreateDataChannel(ctx context.Context, label string, options backend.DataChannelOptions) (*DataChannel, error) {
	var (
		h   *backend.DataChannelHandler
		err error
	)
	if serr := s.do(ctx, func() {
		h, err = s.backend.CreateDataChannel(label, options)
	}); serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, err
	}
	return WrapDataChannel(ctx, s, h)
}

// AddStream attaches a local stream. It is sent with the next offer.
func (s *Session) AddStream(ctx context.Context, stream rtc.MediaStream) error {
	s.mu.Lock()
	s.localStreams = append(s.localStreams, stream)
	s.mu.Unlock()
	return s.do(ctx, s.backend.MarkAsNeedingNegotiation)
}

// RemoveStream detaches a local stream added with AddStream. The peer stops
// receiving it after the next offer.
func (s *Session) RemoveStream(ctx context.Context, stream rtc.MediaStream) error {
	s.mu.Lock()
	for i, local := range s.localStreams {
		if local.ID() == stream.ID() {
			s.localStreams = append(s.localStreams[:i], s.localStreams[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	var err error
	if serr := s.do(ctx, func() {
		err = s.backend.RemoveLocalStream(stream)
	}); serr != nil {
		return serr
	}
	return err
}

// Close stops the session. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closed.Do(func() {
		err = s.do(context.Background(), s.backend.Stop)
	})
	return err
}

// sessionClient receives the backend's callbacks on the session loop.
type sessionClient struct {
	s *Session
}

var _ backend.Client = sessionClient{}

func (c sessionClient) SignalingStateChanged(state backend.SignalingState) {
	log.Debug().Str("state", state.String()).Msg("signaling state changed")
}

func (c sessionClient) ICEGatheringStateChanged(state backend.ICEGatheringState) {
	log.Debug().Str("state", state.String()).Msg("ice gathering state changed")
}

func (c sessionClient) ICEConnectionStateChanged(state backend.ICEConnectionState) {
	log.Debug().Str("state", state.String()).Msg("ice connection state changed")
	select {
	case c.s.iceStates <- state:
	default:
		log.Debug().Str("state", state.String()).Msg("dropping ice connection state")
	}
}

func (c sessionClient) NegotiationNeeded() {
	select {
	case c.s.negotiation <- struct{}{}:
	default:
	}
}

func (c sessionClient) ICECandidate(candidate backend.ICECandidate) {
	select {
	case c.s.candidates <- candidate:
	default:
		log.Warn().Str("candidate", candidate.Candidate).Msg("dropping ice candidate, nobody is reading")
	}
}

func (c sessionClient) AddStream(stream *backend.MediaStream) {
	select {
	case c.s.streams <- stream:
	default:
		log.Warn().Str("stream", stream.ID).Msg("dropping remote stream, nobody is reading")
	}
}

func (c sessionClient) DataChannel(h *backend.DataChannelHandler) {
	select {
	case c.s.dataChannels <- h:
	default:
		log.Warn().Str("label", h.Label()).Msg("closing data channel, nobody is accepting")
		h.Close()
	}
}

func (c sessionClient) LocalStreams() []rtc.MediaStream {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return append([]rtc.MediaStream(nil), c.s.localStreams...)
}

func (c sessionClient) PostTask(task func()) {
	c.s.loop.Post(func(context.Context) {
		task()
	})
}
