// Package backend implements the session negotiation state machine that sits
// between a promise-style consumer and an asynchronous WebRTC engine.
//
// A Backend is not safe for concurrent use. Every method, and every engine
// callback, must run on the execution context that owns the session.
package backend

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

type pendingDescription struct {
	id      int
	op      string
	promise SessionDescriptionPromise
}

type pendingVoid struct {
	id      int
	op      string
	promise VoidPromise
	commit  func()
}

// A Backend drives one peer connection.
type Backend struct {
	factory *Factory
	client  Client
	pc      rtc.PeerConnection
	stopped bool

	signalingState     SignalingState
	iceGatheringState  ICEGatheringState
	iceConnectionState ICEConnectionState

	localDescription  *SessionDescription
	remoteDescription *SessionDescription

	// at most one of each class is outstanding
	pendingDescription *pendingDescription
	pendingVoid        *pendingVoid
	pendingStats       map[int]StatsPromise

	negotiationNeeded bool
	addedLocalStreams map[string]rtc.MediaStream

	dataChannels  []*DataChannelHandler
	remoteStreams []*MediaStream
}

// SetConfiguration applies cfg. The first call creates the engine
// connection and returns any error doing so; later calls update it in place
// and only log failures.
func (b *Backend) SetConfiguration(cfg Configuration) error {
	if b.stopped {
		return ErrClosed
	}

	engineCfg := cfg.toEngine()
	if b.pc == nil {
		pc, err := b.factory.engine.NewPeerConnection(engineCfg, &engineObserver{b: b})
		if err != nil {
			return fmt.Errorf("failed to create peer connection: %w", err)
		}
		b.pc = pc
		log.Debug().Int("ice-servers", len(engineCfg.ICEServers)).Msg("created peer connection")
		return nil
	}

	if err := b.pc.SetConfiguration(engineCfg); err != nil {
		log.Warn().Err(err).Msg("failed to update peer connection configuration")
	}
	return nil
}

// CreateOffer asks the engine for an offer. options may be nil.
func (b *Backend) CreateOffer(options *OfferOptions, promise SessionDescriptionPromise) {
	engineOptions := rtc.DefaultOfferAnswerOptions()
	if options != nil {
		engineOptions = rtc.OfferAnswerOptions{
			OfferToReceiveAudio:    options.OfferToReceiveAudio,
			OfferToReceiveVideo:    options.OfferToReceiveVideo,
			VoiceActivityDetection: options.VoiceActivityDetection,
			ICERestart:             options.ICERestart,
		}
	}
	b.requestDescription("offer", promise, func(id int) error {
		return b.pc.CreateOffer(id, engineOptions)
	})
}

// CreateAnswer asks the engine for an answer. options may be nil.
func (b *Backend) CreateAnswer(options *AnswerOptions, promise SessionDescriptionPromise) {
	engineOptions := rtc.DefaultOfferAnswerOptions()
	if options != nil {
		engineOptions.VoiceActivityDetection = options.VoiceActivityDetection
	}
	b.requestDescription("answer", promise, func(id int) error {
		return b.pc.CreateAnswer(id, engineOptions)
	})
}

func (b *Backend) requestDescription(op string, promise SessionDescriptionPromise, dispatch func(id int) error) {
	if b.pc == nil || b.stopped {
		promise(nil, ErrClosed)
		return
	}
	if pending := b.pendingDescription; pending != nil {
		log.Error().
			Str("op", op).
			Str("pending-op", pending.op).
			Int("pending-id", pending.id).
			Msg("session description request issued while another is pending")
		promise(nil, ErrRequestPending)
		return
	}

	id := b.factory.ids.Next()
	b.pendingDescription = &pendingDescription{id: id, op: op, promise: promise}
	if err := dispatch(id); err != nil {
		b.pendingDescription = nil
		promise(nil, fmt.Errorf("Failed to create %s: %w", op, err))
		return
	}
	log.Debug().Str("op", op).Int("id", id).Msg("requested session description")
}

// SetLocalDescription applies desc as the local description.
func (b *Backend) SetLocalDescription(desc SessionDescription, promise VoidPromise) {
	b.setDescription("local", desc, promise, func(id int, d rtc.SessionDescription) error {
		return b.pc.SetLocalDescription(id, d)
	}, func(confirmed *SessionDescription) {
		b.localDescription = confirmed
		b.checkEngineDescription("local", confirmed, b.pc.LocalDescription)
	})
}

// SetRemoteDescription applies desc as the remote description.
func (b *Backend) SetRemoteDescription(desc SessionDescription, promise VoidPromise) {
	b.setDescription("remote", desc, promise, func(id int, d rtc.SessionDescription) error {
		return b.pc.SetRemoteDescription(id, d)
	}, func(confirmed *SessionDescription) {
		b.remoteDescription = confirmed
		b.checkEngineDescription("remote", confirmed, b.pc.RemoteDescription)
	})
}

func (b *Backend) setDescription(
	side string,
	desc SessionDescription,
	promise VoidPromise,
	dispatch func(id int, d rtc.SessionDescription) error,
	store func(*SessionDescription),
) {
	op := "set " + side + " description"
	if b.pc == nil || b.stopped {
		promise(ErrClosed)
		return
	}
	if pending := b.pendingVoid; pending != nil {
		log.Error().
			Str("op", op).
			Str("pending-op", pending.op).
			Int("pending-id", pending.id).
			Msg("description request issued while another is pending")
		promise(ErrRequestPending)
		return
	}

	// parse failures are reported before an id is issued
	if desc.Type.String() == "" {
		promise(&ParseError{What: side + " description", Err: ErrInvalidSDPType})
		return
	}
	engineDesc := desc.toEngine()
	if err := b.pc.ParseSessionDescription(engineDesc); err != nil {
		promise(&ParseError{What: side + " description", Err: err})
		return
	}

	confirmed := desc
	id := b.factory.ids.Next()
	b.pendingVoid = &pendingVoid{
		id:      id,
		op:      op,
		promise: promise,
		commit: func() {
			if confirmed.Type == SDPTypeRollback {
				store(nil)
				return
			}
			store(&confirmed)
		},
	}
	if err := dispatch(id, engineDesc); err != nil {
		b.pendingVoid = nil
		promise(fmt.Errorf("Failed to %s: %w", op, err))
		return
	}
	log.Debug().Str("op", op).Str("type", desc.Type.String()).Int("id", id).Msg("requested description change")
}

// checkEngineDescription logs when the engine reports a different
// description type than the one it just confirmed. Engines may rewrite the
// SDP itself, so only the type is compared.
func (b *Backend) checkEngineDescription(side string, confirmed *SessionDescription, engine func() (rtc.SessionDescription, bool)) {
	if confirmed == nil {
		return
	}
	got, ok := engine()
	if !ok || got.Type != confirmed.Type.String() {
		log.Warn().
			Str("side", side).
			Str("confirmed", confirmed.Type.String()).
			Str("engine", got.Type).
			Bool("engine-has-description", ok).
			Msg("engine description disagrees with the confirmed one")
	}
}

// LocalDescription returns the last description the engine accepted as
// local, or nil.
func (b *Backend) LocalDescription() *SessionDescription {
	return copyDescription(b.localDescription)
}

// RemoteDescription returns the last description the engine accepted as
// remote, or nil.
func (b *Backend) RemoteDescription() *SessionDescription {
	return copyDescription(b.remoteDescription)
}

func copyDescription(desc *SessionDescription) *SessionDescription {
	if desc == nil {
		return nil
	}
	cp := *desc
	return &cp
}

// SignalingState returns the last signaling state reported by the engine.
func (b *Backend) SignalingState() SignalingState {
	return b.signalingState
}

// ICEGatheringState returns the last gathering state reported by the engine.
func (b *Backend) ICEGatheringState() ICEGatheringState {
	return b.iceGatheringState
}

// ICEConnectionState returns the last connection state reported by the engine.
func (b *Backend) ICEConnectionState() ICEConnectionState {
	return b.iceConnectionState
}

// AddICECandidate hands a remote candidate to the engine. The promise is
// settled before AddICECandidate returns.
func (b *Backend) AddICECandidate(candidate ICECandidate, promise VoidPromise) {
	if b.pc == nil || b.stopped {
		promise(ErrClosed)
		return
	}
	engineCandidate := rtc.ICECandidate{
		SDP:           candidate.Candidate,
		SDPMid:        candidate.SDPMid,
		SDPMLineIndex: candidate.SDPMLineIndex,
	}
	if err := b.pc.ParseICECandidate(engineCandidate); err != nil {
		promise(&ParseError{What: "ICE candidate", Err: err})
		return
	}
	if err := b.pc.AddICECandidate(engineCandidate); err != nil {
		log.Warn().Err(err).Str("candidate", candidate.Candidate).Msg("engine rejected ICE candidate")
		promise(fmt.Errorf("%w: %v", ErrAddICECandidate, err))
		return
	}
	promise(nil)
}

// GetStats requests a stats report. Stats requests may overlap. Scoping the
// report to a track is not supported.
func (b *Backend) GetStats(trackID string, promise StatsPromise) {
	if trackID != "" {
		promise(nil, ErrNotSupported)
		return
	}
	if b.pc == nil || b.stopped {
		promise(nil, ErrClosed)
		return
	}

	id := b.factory.ids.Next()
	b.pendingStats[id] = promise
	if err := b.pc.GetStats(id); err != nil {
		delete(b.pendingStats, id)
		promise(nil, fmt.Errorf("%w: %v", ErrGetStats, err))
		return
	}
	log.Debug().Int("id", id).Msg("requested stats")
}

// ReplaceTrack is not supported.
func (b *Backend) ReplaceTrack(senderID, trackID string, promise VoidPromise) {
	log.Debug().Str("sender", senderID).Str("track", trackID).Msg("replaceTrack is not supported")
	promise(ErrNotSupported)
}

// CreateDataChannel creates a local data channel.
func (b *Backend) CreateDataChannel(label string, options DataChannelOptions) (*DataChannelHandler, error) {
	if b.pc == nil || b.stopped {
		return nil, ErrClosed
	}

	init, err := dataChannelInit(options)
	if err != nil {
		log.Warn().Err(err).Str("label", label).Msg("refusing data channel options")
		return nil, err
	}

	dc, err := b.pc.CreateDataChannel(label, init)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel %q: %w", label, err)
	}
	return b.trackDataChannel(dc), nil
}

func dataChannelInit(options DataChannelOptions) (rtc.DataChannelInit, error) {
	init := rtc.DefaultDataChannelInit()
	if options.Ordered != nil {
		init.Ordered = *options.Ordered
	}
	init.Negotiated = options.Negotiated
	init.Protocol = options.Protocol
	if options.ID != nil {
		id := *options.ID
		init.ID = &id
	}

	if options.MaxRetransmits != "" && options.MaxRetransmitTime != "" {
		return init, ErrInvalidDataChannelInit
	}
	if options.MaxRetransmits != "" {
		v, err := parseUint16(options.MaxRetransmits)
		if err != nil {
			return init, &ParseError{What: "maxRetransmits", Err: err}
		}
		init.MaxRetransmits = &v
	}
	if options.MaxRetransmitTime != "" {
		v, err := parseUint16(options.MaxRetransmitTime)
		if err != nil {
			return init, &ParseError{What: "maxRetransmitTime", Err: err}
		}
		init.MaxRetransmitTime = &v
	}
	return init, nil
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func (b *Backend) trackDataChannel(dc rtc.DataChannel) *DataChannelHandler {
	h := newDataChannelHandler(dc)
	h.release = func() {
		for i, other := range b.dataChannels {
			if other == h {
				b.dataChannels = append(b.dataChannels[:i], b.dataChannels[i+1:]...)
				return
			}
		}
	}
	b.dataChannels = append(b.dataChannels, h)
	return h
}

// RemoteStreams returns the streams the remote peer has added.
func (b *Backend) RemoteStreams() []*MediaStream {
	return append([]*MediaStream(nil), b.remoteStreams...)
}

// IsNegotiationNeeded reports whether renegotiation was requested and not
// yet cleared.
func (b *Backend) IsNegotiationNeeded() bool {
	return b.negotiationNeeded
}

// MarkAsNeedingNegotiation sets the negotiation-needed flag and attaches the
// first local stream to the engine if it has not been attached yet.
func (b *Backend) MarkAsNeedingNegotiation() {
	b.negotiationNeeded = true
	if b.pc == nil || b.stopped {
		return
	}

	for _, stream := range b.client.LocalStreams() {
		if stream == nil {
			continue
		}
		if _, added := b.addedLocalStreams[stream.ID()]; !added {
			if err := b.pc.AddStream(stream); err != nil {
				log.Warn().Err(err).Str("stream", stream.ID()).Msg("failed to attach local stream")
			} else {
				b.addedLocalStreams[stream.ID()] = stream
				log.Debug().Str("stream", stream.ID()).Msg("attached local stream")
			}
		}
		break
	}
}

// RemoveLocalStream detaches stream from the engine connection and sets the
// negotiation-needed flag. The stream is attached again if it is still among
// the client's local streams at the next MarkAsNeedingNegotiation.
func (b *Backend) RemoveLocalStream(stream rtc.MediaStream) error {
	if b.pc == nil || b.stopped {
		return ErrClosed
	}
	if _, added := b.addedLocalStreams[stream.ID()]; !added {
		return nil
	}
	delete(b.addedLocalStreams, stream.ID())
	b.negotiationNeeded = true
	if err := b.pc.RemoveStream(stream); err != nil {
		return fmt.Errorf("failed to detach local stream %s: %w", stream.ID(), err)
	}
	log.Debug().Str("stream", stream.ID()).Msg("detached local stream")
	return nil
}

// ClearNegotiationNeededState clears the negotiation-needed flag.
func (b *Backend) ClearNegotiationNeededState() {
	b.negotiationNeeded = false
}

// Stop closes the session. Data channels and local streams are torn down
// before the engine connection. Requests still pending are rejected with ErrClosed. Stop may be
// called more than once.
func (b *Backend) Stop() {
	if b.stopped {
		return
	}
	b.stopped = true

	for _, h := range append([]*DataChannelHandler(nil), b.dataChannels...) {
		if err := h.Close(); err != nil {
			log.Debug().Err(err).Str("label", h.Label()).Msg("error closing data channel")
		}
	}
	b.dataChannels = nil
	b.remoteStreams = nil

	if b.pc != nil {
		for id, stream := range b.addedLocalStreams {
			if err := b.pc.RemoveStream(stream); err != nil {
				log.Debug().Err(err).Str("stream", id).Msg("error detaching local stream")
			}
		}
	}
	b.addedLocalStreams = make(map[string]rtc.MediaStream)

	if pending := b.pendingDescription; pending != nil {
		b.pendingDescription = nil
		pending.promise(nil, ErrClosed)
	}
	if pending := b.pendingVoid; pending != nil {
		b.pendingVoid = nil
		pending.promise(ErrClosed)
	}
	for id, promise := range b.pendingStats {
		delete(b.pendingStats, id)
		promise(nil, ErrClosed)
	}

	if b.pc != nil {
		if err := b.pc.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing peer connection")
		}
	}
	log.Debug().Msg("stopped peer connection backend")
}
