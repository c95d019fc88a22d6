package backend

import (
	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// engineObserver receives engine callbacks for a Backend. Callbacks arriving
// after Stop, or for ids with no matching pending request, are logged and
// ignored.
type engineObserver struct {
	b *Backend
}

var _ rtc.Observer = (*engineObserver)(nil)

func (o *engineObserver) ignore(event string) bool {
	if o.b.stopped {
		log.Debug().Str("event", event).Msg("ignoring engine callback for stopped session")
		return true
	}
	return false
}

func (o *engineObserver) RequestSucceeded(id int) {
	if o.ignore("request-succeeded") {
		return
	}
	b := o.b
	pending := b.pendingVoid
	if pending == nil || pending.id != id {
		log.Warn().Int("id", id).Msg("success callback does not match a pending description request")
		return
	}
	b.pendingVoid = nil
	pending.commit()
	pending.promise(nil)
}

func (o *engineObserver) DescriptionRequestSucceeded(id int, desc rtc.SessionDescription) {
	if o.ignore("description-request-succeeded") {
		return
	}
	b := o.b
	pending := b.pendingDescription
	if pending == nil || pending.id != id {
		log.Warn().Int("id", id).Msg("session description callback does not match a pending request")
		return
	}
	b.pendingDescription = nil

	result, err := sessionDescriptionFromEngine(desc)
	if err != nil {
		pending.promise(nil, err)
		return
	}
	pending.promise(result, nil)
}

func (o *engineObserver) StatsRequestSucceeded(id int, reports []rtc.StatsReport) {
	if o.ignore("stats-request-succeeded") {
		return
	}
	b := o.b
	promise, ok := b.pendingStats[id]
	if !ok {
		log.Warn().Int("id", id).Msg("stats callback does not match a pending request")
		return
	}
	delete(b.pendingStats, id)
	promise(statsResponseFromEngine(reports), nil)
}

func (o *engineObserver) RequestFailed(id int, err error) {
	if o.ignore("request-failed") {
		return
	}
	b := o.b
	switch {
	case b.pendingVoid != nil && b.pendingVoid.id == id:
		pending := b.pendingVoid
		b.pendingVoid = nil
		pending.promise(err)
	case b.pendingDescription != nil && b.pendingDescription.id == id:
		pending := b.pendingDescription
		b.pendingDescription = nil
		pending.promise(nil, err)
	default:
		promise, ok := b.pendingStats[id]
		if !ok {
			log.Warn().Int("id", id).Err(err).Msg("failure callback does not match a pending request")
			return
		}
		delete(b.pendingStats, id)
		promise(nil, err)
	}
}

func (o *engineObserver) NegotiationNeeded() {
	if o.ignore("negotiation-needed") {
		return
	}
	o.b.negotiationNeeded = true
	o.b.client.NegotiationNeeded()
}

func (o *engineObserver) RemoteStreamAdded(stream rtc.MediaStream, audioTrackIDs, videoTrackIDs []string) {
	if o.ignore("remote-stream-added") {
		return
	}
	b := o.b
	ms := newRemoteMediaStream(stream, audioTrackIDs, videoTrackIDs)
	b.remoteStreams = append(b.remoteStreams, ms)
	log.Info().
		Str("stream", ms.ID).
		Int("audio", len(audioTrackIDs)).
		Int("video", len(videoTrackIDs)).
		Msg("remote stream added")

	client := b.client
	client.PostTask(func() {
		client.AddStream(ms)
	})
}

func (o *engineObserver) RemoteStreamRemoved(stream rtc.MediaStream) {
	if o.ignore("remote-stream-removed") {
		return
	}
	b := o.b
	for i, ms := range b.remoteStreams {
		if ms.ID == stream.ID() {
			b.remoteStreams = append(b.remoteStreams[:i], b.remoteStreams[i+1:]...)
			log.Info().Str("stream", ms.ID).Msg("remote stream removed")
			return
		}
	}
	log.Debug().Str("stream", stream.ID()).Msg("removed stream was never added")
}

func (o *engineObserver) ICECandidateFound(candidate rtc.ICECandidate) {
	if o.ignore("ice-candidate") {
		return
	}
	c := ICECandidate{
		Candidate:     candidate.SDP,
		SDPMid:        candidate.SDPMid,
		SDPMLineIndex: candidate.SDPMLineIndex,
	}
	client := o.b.client
	client.PostTask(func() {
		client.ICECandidate(c)
	})
}

func (o *engineObserver) SignalingStateChanged(state rtc.SignalingState) {
	if o.ignore("signaling-state-changed") {
		return
	}
	s, ok := signalingStateFromEngine(state)
	if !ok {
		log.Debug().Int("state", int(state)).Msg("dropping unknown signaling state")
		return
	}
	o.b.signalingState = s
	o.b.client.SignalingStateChanged(s)
}

func (o *engineObserver) ICEGatheringStateChanged(state rtc.ICEGatheringState) {
	if o.ignore("ice-gathering-state-changed") {
		return
	}
	s, ok := iceGatheringStateFromEngine(state)
	if !ok {
		log.Debug().Int("state", int(state)).Msg("dropping unknown ICE gathering state")
		return
	}
	o.b.iceGatheringState = s
	o.b.client.ICEGatheringStateChanged(s)
}

func (o *engineObserver) ICEConnectionStateChanged(state rtc.ICEConnectionState) {
	if o.ignore("ice-connection-state-changed") {
		return
	}
	s, ok := iceConnectionStateFromEngine(state)
	if !ok {
		log.Debug().Int("state", int(state)).Msg("dropping unknown ICE connection state")
		return
	}
	o.b.iceConnectionState = s
	o.b.client.ICEConnectionStateChanged(s)
}

func (o *engineObserver) DataChannelCreated(dc rtc.DataChannel) {
	if o.ignore("data-channel-created") {
		_ = dc.Close()
		return
	}
	h := o.b.trackDataChannel(dc)
	log.Info().Str("label", h.Label()).Msg("remote data channel created")

	client := o.b.client
	client.PostTask(func() {
		client.DataChannel(h)
	})
}
