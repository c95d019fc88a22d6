package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/internal/backend"
	"github.com/rtctunnel/rtcbackend/internal/crypt"
	"github.com/rtctunnel/rtcbackend/internal/runloop"
	"github.com/rtctunnel/rtcbackend/internal/signal"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

const (
	// InitLabel is the data channel the offerer creates so the offer carries
	// an application section.
	InitLabel = "rtcbackend:init"

	DefaultConnectTimeout = time.Minute
)

// ErrClosed is returned once the connection is closed.
var ErrClosed = errors.New("peer: connection closed")

type options struct {
	cfg     backend.Configuration
	timeout time.Duration
	streams []rtc.MediaStream
}

// An Option customizes Open.
type Option func(*options)

// WithConfiguration sets the ICE servers.
func WithConfiguration(cfg backend.Configuration) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithLocalStream sends stream to the peer. It is added before the first
// offer.
func WithLocalStream(stream rtc.MediaStream) Option {
	return func(o *options) {
		o.streams = append(o.streams, stream)
	}
}

// WithConnectTimeout bounds the time until ICE connects.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Conn is a negotiated peer connection. Data channels are opened with Open
// and accepted with Accept.
type Conn struct {
	session  *Session
	signaler *signal.Signaler
	stop     context.CancelFunc

	connected *Cond
	closeCond *Cond

	mu       sync.Mutex
	init     *DataChannel
	closeErr error
}

// Open negotiates a connection with the peer behind sig.
func Open(ctx context.Context, factory *backend.Factory, loop *runloop.Loop, sig *signal.Signaler, opts ...Option) (*Conn, error) {
	o := options{timeout: DefaultConnectTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	log.Info().
		Str("peer", sig.Remote().String()).
		Bool("offerer", sig.Offerer()).
		Msg("creating peer connection")

	session, err := NewSession(ctx, factory, loop, o.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	for _, stream := range o.streams {
		if err := session.AddStream(ctx, stream); err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to add local stream %s: %w", stream.ID(), err)
		}
	}

	runCtx, stop := context.WithCancel(context.Background())
	conn := &Conn{
		session:   session,
		signaler:  sig,
		stop:      stop,
		connected: NewCond(),
		closeCond: NewCond(),
	}
	go conn.forwardCandidates(runCtx)
	go conn.receiveSignals(runCtx)
	go conn.watch(runCtx)

	if sig.Offerer() {
		dc, err := session.CreateDataChannel(ctx, InitLabel, backend.DataChannelOptions{})
		if err != nil {
			return nil, conn.closeWithError(fmt.Errorf("error creating init data channel: %w", err))
		}
		conn.setInit(dc)

		if err := conn.offer(ctx); err != nil {
			return nil, conn.closeWithError(err)
		}
	}

	select {
	case <-conn.connected.C:
	case <-conn.closeCond.C:
		return nil, conn.Err()
	case <-ctx.Done():
		return nil, conn.closeWithError(fmt.Errorf("failed to connect in time: %w", ctx.Err()))
	}

	log.Info().Str("peer", sig.Remote().String()).Msg("connected")
	return conn, nil
}

func (conn *Conn) setInit(dc *DataChannel) {
	conn.mu.Lock()
	conn.init = dc
	conn.mu.Unlock()
}

func (conn *Conn) offer(ctx context.Context) error {
	desc, err := conn.session.CreateOffer(ctx, nil)
	if err != nil {
		return fmt.Errorf("error creating offer: %w", err)
	}
	if err := conn.session.SetLocalDescription(ctx, *desc); err != nil {
		return fmt.Errorf("error setting offer: %w", err)
	}
	return conn.sendDescription(ctx, desc)
}

func (conn *Conn) sendDescription(ctx context.Context, desc *backend.SessionDescription) error {
	err := conn.signaler.Send(ctx, signal.Message{
		Type:        signal.TypeDescription,
		Description: &rtc.SessionDescription{Type: desc.Type.String(), SDP: desc.SDP},
	})
	if err != nil {
		return fmt.Errorf("error sending %s: %w", desc.Type, err)
	}
	return nil
}

// handleDescription applies a remote description and answers offers.
func (conn *Conn) handleDescription(ctx context.Context, remote rtc.SessionDescription) error {
	typ, err := backend.ParseSDPType(remote.Type)
	if err != nil {
		return err
	}
	if err := conn.session.SetRemoteDescription(ctx, backend.SessionDescription{Type: typ, SDP: remote.SDP}); err != nil {
		return fmt.Errorf("error setting remote %s: %w", typ, err)
	}
	if typ != backend.SDPTypeOffer {
		return nil
	}

	answer, err := conn.session.CreateAnswer(ctx, nil)
	if err != nil {
		return fmt.Errorf("error creating answer: %w", err)
	}
	if err := conn.session.SetLocalDescription(ctx, *answer); err != nil {
		return fmt.Errorf("error setting answer: %w", err)
	}
	return conn.sendDescription(ctx, answer)
}

// receiveSignals applies the peer's messages. Candidates that arrive before
// the remote description are held until it is applied.
func (conn *Conn) receiveSignals(ctx context.Context) {
	var (
		queued    []backend.ICECandidate
		remoteSet bool
	)
	for {
		msg, err := conn.signaler.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("failed to receive signal")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		switch msg.Type {
		case signal.TypeDescription:
			if err := conn.handleDescription(ctx, *msg.Description); err != nil {
				conn.closeWithError(err)
				return
			}
			remoteSet = true
			for _, candidate := range queued {
				conn.addCandidate(ctx, candidate)
			}
			queued = nil

		case signal.TypeCandidate:
			candidate := backend.ICECandidate{
				Candidate:     msg.Candidate.SDP,
				SDPMid:        msg.Candidate.SDPMid,
				SDPMLineIndex: msg.Candidate.SDPMLineIndex,
			}
			if !remoteSet {
				queued = append(queued, candidate)
				continue
			}
			conn.addCandidate(ctx, candidate)
		}
	}
}

func (conn *Conn) addCandidate(ctx context.Context, candidate backend.ICECandidate) {
	if err := conn.session.AddICECandidate(ctx, candidate); err != nil {
		log.Warn().Err(err).Str("candidate", candidate.Candidate).Msg("failed to add ice candidate")
	}
}

func (conn *Conn) forwardCandidates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case candidate := <-conn.session.Candidates():
			err := conn.signaler.Send(ctx, signal.Message{
				Type: signal.TypeCandidate,
				Candidate: &rtc.ICECandidate{
					SDP:           candidate.Candidate,
					SDPMid:        candidate.SDPMid,
					SDPMLineIndex: candidate.SDPMLineIndex,
				},
			})
			if err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("failed to send ice candidate")
			}
		}
	}
}

// watch follows the ICE connection state. Once connected, the offerer also
// renegotiates when the session asks for it.
func (conn *Conn) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-conn.session.ICEConnectionStates():
			switch state {
			case backend.ICEConnectionConnected, backend.ICEConnectionCompleted:
				conn.connected.Signal()
			case backend.ICEConnectionFailed:
				conn.closeWithError(errors.New("ice connection failed"))
			case backend.ICEConnectionClosed:
				conn.closeWithError(ErrClosed)
			}
		case <-conn.session.NegotiationNeeded():
			if !conn.connected.Fired() {
				continue
			}
			if !conn.signaler.Offerer() {
				log.Debug().Msg("ignoring negotiation request, the peer offers")
				continue
			}
			if err := conn.offer(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("renegotiation failed")
			}
		}
	}
}

// Open opens a data channel with the given label and waits until it is
// usable.
func (conn *Conn) Open(ctx context.Context, label string) (*DataChannel, error) {
	if label == InitLabel {
		return nil, fmt.Errorf("data channel label %q is reserved", label)
	}
	dc, err := conn.session.CreateDataChannel(ctx, label, backend.DataChannelOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open data channel: %w", err)
	}
	if err := dc.WaitOpen(ctx); err != nil {
		dc.Close()
		return nil, err
	}

	log.Info().
		Str("peer", conn.signaler.Remote().String()).
		Str("label", label).
		Msg("opened data channel")
	return dc, nil
}

// Accept waits for the next data channel opened by the peer.
func (conn *Conn) Accept(ctx context.Context) (*DataChannel, error) {
	for {
		select {
		case h := <-conn.session.DataChannels():
			dc, err := WrapDataChannel(ctx, conn.session, h)
			if err != nil {
				return nil, err
			}
			if dc.Label() == InitLabel {
				conn.setInit(dc)
				continue
			}
			if err := dc.WaitOpen(ctx); err != nil {
				log.Info().Str("label", dc.Label()).Err(err).Msg("ignoring data channel")
				dc.Close()
				continue
			}

			log.Info().
				Str("peer", conn.signaler.Remote().String()).
				Str("label", dc.Label()).
				Msg("accepted data channel")
			return dc, nil
		case <-conn.closeCond.C:
			return nil, conn.Err()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Stats collects the connection statistics.
func (conn *Conn) Stats(ctx context.Context) (*backend.StatsResponse, error) {
	return conn.session.GetStats(ctx)
}

// Session returns the underlying session.
func (conn *Conn) Session() *Session {
	return conn.session
}

// Peer returns the remote peer's key.
func (conn *Conn) Peer() crypt.Key {
	return conn.signaler.Remote()
}

// Done is closed once the connection is closed.
func (conn *Conn) Done() <-chan struct{} {
	return conn.closeCond.C
}

// Err returns the reason the connection closed, if it did.
func (conn *Conn) Err() error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.closeErr
}

// Close closes the peer connection.
func (conn *Conn) Close() error {
	conn.closeWithError(ErrClosed)
	return nil
}

func (conn *Conn) closeWithError(err error) error {
	conn.closeCond.Do(func() {
		conn.mu.Lock()
		conn.closeErr = err
		initDC := conn.init
		conn.mu.Unlock()

		conn.stop()
		if initDC != nil {
			initDC.Close()
		}
		if cerr := conn.session.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("error closing session")
		}
	})
	return conn.Err()
}
