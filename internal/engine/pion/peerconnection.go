package pion

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/internal/runloop"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

type peerConnection struct {
	engine   *Engine
	pc       *webrtc.PeerConnection
	observer rtc.Observer

	mu      sync.Mutex
	remote  map[string]*mediaStream
	senders map[string][]*webrtc.RTPSender
}

var _ rtc.PeerConnection = (*peerConnection)(nil)

func newPeerConnection(e *Engine, native *webrtc.PeerConnection, observer rtc.Observer) *peerConnection {
	pc := &peerConnection{
		engine:   e,
		pc:       native,
		observer: observer,
		remote:   make(map[string]*mediaStream),
		senders:  make(map[string][]*webrtc.RTPSender),
	}

	native.OnNegotiationNeeded(func() {
		e.post(observer.NegotiationNeeded)
	})
	native.OnSignalingStateChange(func(s webrtc.SignalingState) {
		state, ok := signalingStates[s]
		if !ok {
			log.Debug().Str("state", s.String()).Msg("ignoring signaling state")
			return
		}
		e.post(func() { observer.SignalingStateChanged(state) })
	})
	native.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		state, ok := iceConnectionStates[s]
		if !ok {
			log.Debug().Str("state", s.String()).Msg("ignoring ice connection state")
			return
		}
		e.post(func() { observer.ICEConnectionStateChanged(state) })
	})
	native.OnICEGatheringStateChange(func(s webrtc.ICEGatheringState) {
		state, ok := iceGatheringStates[s]
		if !ok {
			log.Debug().Str("state", s.String()).Msg("ignoring ice gathering state")
			return
		}
		e.post(func() { observer.ICEGatheringStateChanged(state) })
	})
	native.OnICECandidate(pc.onICECandidate)
	native.OnTrack(pc.onTrack)
	native.OnDataChannel(func(dc *webrtc.DataChannel) {
		wrapped := newDataChannel(e, dc)
		e.post(func() { observer.DataChannelCreated(wrapped) })
	})
	return pc
}

func (pc *peerConnection) onICECandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	candidate := fromCandidate(c)
	pc.engine.post(func() { pc.observer.ICECandidateFound(candidate) })
}

func (pc *peerConnection) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	streamID := track.StreamID()
	pc.mu.Lock()
	ms, exists := pc.remote[streamID]
	if !exists {
		ms = &mediaStream{id: streamID, remote: make(map[string]webrtc.RTPCodecType)}
		pc.remote[streamID] = ms
	}
	ms.remote[track.ID()] = track.Kind()
	pc.mu.Unlock()

	go pc.drain(ms, track)

	if exists {
		log.Debug().Str("stream", streamID).Str("track", track.ID()).Msg("track joined existing remote stream")
		return
	}
	var audio, video []string
	switch track.Kind() {
	case webrtc.RTPCodecTypeAudio:
		audio = append(audio, track.ID())
	case webrtc.RTPCodecTypeVideo:
		video = append(video, track.ID())
	}
	pc.engine.post(func() { pc.observer.RemoteStreamAdded(ms, audio, video) })
}

// drain reads RTP until the track ends so pion's buffers never fill up. The
// stream is reported as removed once its last track has ended.
func (pc *peerConnection) drain(ms *mediaStream, track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			break
		}
	}

	pc.mu.Lock()
	delete(ms.remote, track.ID())
	ended := len(ms.remote) == 0 && pc.remote[ms.id] == ms
	if ended {
		delete(pc.remote, ms.id)
	}
	pc.mu.Unlock()

	log.Debug().Str("stream", ms.id).Str("track", track.ID()).Msg("remote track ended")
	if ended {
		pc.engine.post(func() { pc.observer.RemoteStreamRemoved(ms) })
	}
}

// do runs fn on the worker and waits for it.
func (pc *peerConnection) do(fn func()) error {
	return pc.engine.worker.Send(context.Background(), func(ctx context.Context) {
		fn()
	})
}

// async runs fn on the worker and reports its outcome for requestID.
func (pc *peerConnection) async(requestID int, fn func() error) error {
	select {
	case <-pc.engine.worker.Done():
		return runloop.ErrClosed
	default:
	}
	pc.engine.worker.Post(func(ctx context.Context) {
		if err := fn(); err != nil {
			pc.engine.post(func() { pc.observer.RequestFailed(requestID, err) })
		}
	})
	return nil
}

func (pc *peerConnection) SetConfiguration(cfg rtc.Configuration) error {
	var err error
	if serr := pc.do(func() {
		err = pc.pc.SetConfiguration(toConfiguration(cfg))
	}); serr != nil {
		return serr
	}
	return err
}

func (pc *peerConnection) CreateOffer(requestID int, options rtc.OfferAnswerOptions) error {
	return pc.async(requestID, func() error {
		if err := pc.ensureReceivers(options); err != nil {
			return err
		}
		offer, err := pc.pc.CreateOffer(&webrtc.OfferOptions{
			OfferAnswerOptions: webrtc.OfferAnswerOptions{VoiceActivityDetection: options.VoiceActivityDetection},
			ICERestart:         options.ICERestart,
		})
		if err != nil {
			return err
		}
		desc, _ := fromSessionDescription(&offer)
		pc.engine.post(func() { pc.observer.DescriptionRequestSucceeded(requestID, desc) })
		return nil
	})
}

func (pc *peerConnection) CreateAnswer(requestID int, options rtc.OfferAnswerOptions) error {
	return pc.async(requestID, func() error {
		answer, err := pc.pc.CreateAnswer(&webrtc.AnswerOptions{
			OfferAnswerOptions: webrtc.OfferAnswerOptions{VoiceActivityDetection: options.VoiceActivityDetection},
		})
		if err != nil {
			return err
		}
		desc, _ := fromSessionDescription(&answer)
		pc.engine.post(func() { pc.observer.DescriptionRequestSucceeded(requestID, desc) })
		return nil
	})
}

// ensureReceivers adds a recvonly transceiver for each requested kind that
// has none yet.
func (pc *peerConnection) ensureReceivers(options rtc.OfferAnswerOptions) error {
	want := map[webrtc.RTPCodecType]bool{
		webrtc.RTPCodecTypeAudio: options.OfferToReceiveAudio,
		webrtc.RTPCodecTypeVideo: options.OfferToReceiveVideo,
	}
	for _, t := range pc.pc.GetTransceivers() {
		want[t.Kind()] = false
	}
	for kind, needed := range want {
		if !needed {
			continue
		}
		_, err := pc.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to add %s transceiver", kind)
		}
	}
	return nil
}

func (pc *peerConnection) ParseSessionDescription(desc rtc.SessionDescription) error {
	return validateSessionDescription(desc)
}

func (pc *peerConnection) SetLocalDescription(requestID int, desc rtc.SessionDescription) error {
	native, err := toSessionDescription(desc)
	if err != nil {
		return err
	}
	return pc.async(requestID, func() error {
		if err := pc.pc.SetLocalDescription(native); err != nil {
			return err
		}
		pc.engine.post(func() { pc.observer.RequestSucceeded(requestID) })
		return nil
	})
}

func (pc *peerConnection) SetRemoteDescription(requestID int, desc rtc.SessionDescription) error {
	native, err := toSessionDescription(desc)
	if err != nil {
		return err
	}
	return pc.async(requestID, func() error {
		if err := pc.pc.SetRemoteDescription(native); err != nil {
			return err
		}
		pc.engine.post(func() { pc.observer.RequestSucceeded(requestID) })
		return nil
	})
}

func (pc *peerConnection) LocalDescription() (desc rtc.SessionDescription, ok bool) {
	if err := pc.do(func() {
		desc, ok = fromSessionDescription(pc.pc.LocalDescription())
	}); err != nil {
		return rtc.SessionDescription{}, false
	}
	return desc, ok
}

func (pc *peerConnection) RemoteDescription() (desc rtc.SessionDescription, ok bool) {
	if err := pc.do(func() {
		desc, ok = fromSessionDescription(pc.pc.RemoteDescription())
	}); err != nil {
		return rtc.SessionDescription{}, false
	}
	return desc, ok
}

func (pc *peerConnection) ParseICECandidate(candidate rtc.ICECandidate) error {
	return validateCandidate(candidate.SDP)
}

func (pc *peerConnection) AddICECandidate(candidate rtc.ICECandidate) error {
	var err error
	if serr := pc.do(func() {
		err = pc.pc.AddICECandidate(toCandidateInit(candidate))
	}); serr != nil {
		return serr
	}
	return err
}

func (pc *peerConnection) AddStream(stream rtc.MediaStream) error {
	ms, ok := stream.(*mediaStream)
	if !ok || ms.remote != nil {
		return errors.New("stream was not created by this engine")
	}
	var err error
	if serr := pc.do(func() {
		pc.mu.Lock()
		_, added := pc.senders[ms.id]
		pc.mu.Unlock()
		if added {
			return
		}
		var senders []*webrtc.RTPSender
		for _, track := range ms.Tracks() {
			var sender *webrtc.RTPSender
			sender, err = pc.pc.AddTrack(track)
			if err != nil {
				err = errors.Wrapf(err, "failed to add track %s", track.ID())
				break
			}
			senders = append(senders, sender)
		}
		if err != nil {
			for _, sender := range senders {
				pc.pc.RemoveTrack(sender)
			}
			return
		}
		pc.mu.Lock()
		pc.senders[ms.id] = senders
		pc.mu.Unlock()
	}); serr != nil {
		return serr
	}
	return err
}

func (pc *peerConnection) RemoveStream(stream rtc.MediaStream) error {
	var err error
	if serr := pc.do(func() {
		pc.mu.Lock()
		senders := pc.senders[stream.ID()]
		delete(pc.senders, stream.ID())
		pc.mu.Unlock()
		for _, sender := range senders {
			if rerr := pc.pc.RemoveTrack(sender); rerr != nil && err == nil {
				err = rerr
			}
		}
	}); serr != nil {
		return serr
	}
	return err
}

func (pc *peerConnection) GetStats(requestID int) error {
	return pc.async(requestID, func() error {
		reports := translateStats(pc.pc.GetStats())
		pc.engine.post(func() { pc.observer.StatsRequestSucceeded(requestID, reports) })
		return nil
	})
}

func (pc *peerConnection) CreateDataChannel(label string, init rtc.DataChannelInit) (rtc.DataChannel, error) {
	ordered := init.Ordered
	negotiated := init.Negotiated
	protocol := init.Protocol
	nativeInit := &webrtc.DataChannelInit{
		Ordered:           &ordered,
		MaxPacketLifeTime: init.MaxRetransmitTime,
		MaxRetransmits:    init.MaxRetransmits,
		Protocol:          &protocol,
		Negotiated:        &negotiated,
		ID:                init.ID,
	}

	var (
		dc  *webrtc.DataChannel
		err error
	)
	if serr := pc.do(func() {
		dc, err = pc.pc.CreateDataChannel(label, nativeInit)
	}); serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, err
	}
	return newDataChannel(pc.engine, dc), nil
}

func (pc *peerConnection) Close() error {
	var err error
	if serr := pc.do(func() {
		err = pc.pc.Close()
	}); serr != nil {
		return serr
	}
	return err
}

var signalingStates = map[webrtc.SignalingState]rtc.SignalingState{
	webrtc.SignalingStateStable:             rtc.SignalingStable,
	webrtc.SignalingStateHaveLocalOffer:     rtc.SignalingHaveLocalOffer,
	webrtc.SignalingStateHaveLocalPranswer:  rtc.SignalingHaveLocalPrAnswer,
	webrtc.SignalingStateHaveRemoteOffer:    rtc.SignalingHaveRemoteOffer,
	webrtc.SignalingStateHaveRemotePranswer: rtc.SignalingHaveRemotePrAnswer,
	webrtc.SignalingStateClosed:             rtc.SignalingClosed,
}

var iceConnectionStates = map[webrtc.ICEConnectionState]rtc.ICEConnectionState{
	webrtc.ICEConnectionStateNew:          rtc.ICEConnectionNew,
	webrtc.ICEConnectionStateChecking:     rtc.ICEConnectionChecking,
	webrtc.ICEConnectionStateConnected:    rtc.ICEConnectionConnected,
	webrtc.ICEConnectionStateCompleted:    rtc.ICEConnectionCompleted,
	webrtc.ICEConnectionStateFailed:       rtc.ICEConnectionFailed,
	webrtc.ICEConnectionStateDisconnected: rtc.ICEConnectionDisconnected,
	webrtc.ICEConnectionStateClosed:       rtc.ICEConnectionClosed,
}

var iceGatheringStates = map[webrtc.ICEGatheringState]rtc.ICEGatheringState{
	webrtc.ICEGatheringStateNew:       rtc.ICEGatheringNew,
	webrtc.ICEGatheringStateGathering: rtc.ICEGatheringGathering,
	webrtc.ICEGatheringStateComplete:  rtc.ICEGatheringComplete,
}
