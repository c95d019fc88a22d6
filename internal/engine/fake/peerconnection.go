package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// A PeerConnection is a fake rtc.PeerConnection. The exported error fields
// script the results of the corresponding calls.
type PeerConnection struct {
	engine *Engine

	// Observer is the backend observer; tests call it to complete requests.
	Observer rtc.Observer

	DispatchErr          error
	SetConfigurationErr  error
	AddICECandidateErr   error
	AddStreamErr         error
	GetStatsErr          error
	CreateDataChannelErr error

	mu           sync.Mutex
	config       rtc.Configuration
	calls        []Call
	streams      []rtc.MediaStream
	dataChannels []*DataChannel
	local        *rtc.SessionDescription
	remote       *rtc.SessionDescription
	closed       int
	offers       int
}

var _ rtc.PeerConnection = (*PeerConnection)(nil)

func (pc *PeerConnection) record(method string, id int, arg interface{}) {
	pc.mu.Lock()
	pc.calls = append(pc.calls, Call{Method: method, RequestID: id, Arg: arg})
	pc.mu.Unlock()
}

// Calls returns every recorded call.
func (pc *PeerConnection) Calls() []Call {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return append([]Call(nil), pc.calls...)
}

// CallsTo returns the recorded calls of one method.
func (pc *PeerConnection) CallsTo(method string) []Call {
	var out []Call
	for _, c := range pc.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// LastRequestID returns the request id of the last call to method, or 0.
func (pc *PeerConnection) LastRequestID(method string) int {
	calls := pc.CallsTo(method)
	if len(calls) == 0 {
		return 0
	}
	return calls[len(calls)-1].RequestID
}

// Config returns the current configuration.
func (pc *PeerConnection) Config() rtc.Configuration {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.config
}

// Streams returns the attached local streams.
func (pc *PeerConnection) Streams() []rtc.MediaStream {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return append([]rtc.MediaStream(nil), pc.streams...)
}

// DataChannels returns the locally created data channels.
func (pc *PeerConnection) DataChannels() []*DataChannel {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return append([]*DataChannel(nil), pc.dataChannels...)
}

// CloseCount returns how many times Close was called.
func (pc *PeerConnection) CloseCount() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.closed
}

func (pc *PeerConnection) respond(fn func(o rtc.Observer)) {
	poster := pc.engine.opts.poster
	if poster == nil {
		return
	}
	observer := pc.Observer
	poster.Post(func(ctx context.Context) {
		fn(observer)
	})
}

func (pc *PeerConnection) SetConfiguration(cfg rtc.Configuration) error {
	pc.record("SetConfiguration", 0, cfg)
	if pc.SetConfigurationErr != nil {
		return pc.SetConfigurationErr
	}
	pc.mu.Lock()
	pc.config = cfg
	pc.mu.Unlock()
	return nil
}

func (pc *PeerConnection) CreateOffer(id int, options rtc.OfferAnswerOptions) error {
	pc.record("CreateOffer", id, options)
	if pc.DispatchErr != nil {
		return pc.DispatchErr
	}
	sdp := pc.nextSDP()
	pc.respond(func(o rtc.Observer) {
		o.DescriptionRequestSucceeded(id, rtc.SessionDescription{Type: "offer", SDP: sdp})
	})
	return nil
}

func (pc *PeerConnection) CreateAnswer(id int, options rtc.OfferAnswerOptions) error {
	pc.record("CreateAnswer", id, options)
	if pc.DispatchErr != nil {
		return pc.DispatchErr
	}
	sdp := pc.nextSDP()
	pc.respond(func(o rtc.Observer) {
		o.DescriptionRequestSucceeded(id, rtc.SessionDescription{Type: "answer", SDP: sdp})
	})
	return nil
}

func (pc *PeerConnection) nextSDP() string {
	pc.mu.Lock()
	pc.offers++
	n := pc.offers
	pc.mu.Unlock()
	return fmt.Sprintf("v=0\r\no=- %d 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n", n)
}

func (pc *PeerConnection) ParseSessionDescription(desc rtc.SessionDescription) error {
	pc.record("ParseSessionDescription", 0, desc)
	return parseDescription(desc)
}

// SetLocalDescription applies desc as soon as it is dispatched.
func (pc *PeerConnection) SetLocalDescription(id int, desc rtc.SessionDescription) error {
	pc.record("SetLocalDescription", id, desc)
	if pc.DispatchErr != nil {
		return pc.DispatchErr
	}
	pc.mu.Lock()
	pc.local = &desc
	pc.mu.Unlock()
	pc.respond(func(o rtc.Observer) {
		o.RequestSucceeded(id)
		o.SignalingStateChanged(nextSignalingState(desc.Type, true))
	})
	return nil
}

// SetRemoteDescription applies desc as soon as it is dispatched.
func (pc *PeerConnection) SetRemoteDescription(id int, desc rtc.SessionDescription) error {
	pc.record("SetRemoteDescription", id, desc)
	if pc.DispatchErr != nil {
		return pc.DispatchErr
	}
	pc.mu.Lock()
	pc.remote = &desc
	pc.mu.Unlock()
	pc.respond(func(o rtc.Observer) {
		o.RequestSucceeded(id)
		o.SignalingStateChanged(nextSignalingState(desc.Type, false))
	})
	return nil
}

func nextSignalingState(typ string, local bool) rtc.SignalingState {
	switch {
	case typ == "offer" && local:
		return rtc.SignalingHaveLocalOffer
	case typ == "offer":
		return rtc.SignalingHaveRemoteOffer
	case typ == "pranswer" && local:
		return rtc.SignalingHaveLocalPrAnswer
	case typ == "pranswer":
		return rtc.SignalingHaveRemotePrAnswer
	}
	return rtc.SignalingStable
}

func (pc *PeerConnection) LocalDescription() (rtc.SessionDescription, bool) {
	pc.record("LocalDescription", 0, nil)
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.local == nil {
		return rtc.SessionDescription{}, false
	}
	return *pc.local, true
}

func (pc *PeerConnection) RemoteDescription() (rtc.SessionDescription, bool) {
	pc.record("RemoteDescription", 0, nil)
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.remote == nil {
		return rtc.SessionDescription{}, false
	}
	return *pc.remote, true
}

func (pc *PeerConnection) ParseICECandidate(candidate rtc.ICECandidate) error {
	pc.record("ParseICECandidate", 0, candidate)
	if candidate.SDP != "" && !strings.HasPrefix(candidate.SDP, "candidate:") {
		return fmt.Errorf("fake: malformed candidate %q", candidate.SDP)
	}
	return nil
}

func (pc *PeerConnection) AddICECandidate(candidate rtc.ICECandidate) error {
	pc.record("AddICECandidate", 0, candidate)
	return pc.AddICECandidateErr
}

func (pc *PeerConnection) AddStream(stream rtc.MediaStream) error {
	pc.record("AddStream", 0, stream)
	if pc.AddStreamErr != nil {
		return pc.AddStreamErr
	}
	pc.mu.Lock()
	pc.streams = append(pc.streams, stream)
	pc.mu.Unlock()
	pc.respond(func(o rtc.Observer) {
		o.NegotiationNeeded()
	})
	return nil
}

func (pc *PeerConnection) RemoveStream(stream rtc.MediaStream) error {
	pc.record("RemoveStream", 0, stream)
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for i, s := range pc.streams {
		if s.ID() == stream.ID() {
			pc.streams = append(pc.streams[:i], pc.streams[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("fake: stream %s not attached", stream.ID())
}

func (pc *PeerConnection) GetStats(id int) error {
	pc.record("GetStats", id, nil)
	if pc.GetStatsErr != nil {
		return pc.GetStatsErr
	}
	pc.respond(func(o rtc.Observer) {
		o.StatsRequestSucceeded(id, []rtc.StatsReport{{
			ID:        "fake-pc",
			Type:      "peer-connection",
			Timestamp: 0,
			Values: []rtc.StatsValue{
				{Name: "dataChannelsOpened", Value: fmt.Sprint(len(pc.DataChannels()))},
			},
		}})
	})
	return nil
}

func (pc *PeerConnection) CreateDataChannel(label string, init rtc.DataChannelInit) (rtc.DataChannel, error) {
	pc.record("CreateDataChannel", 0, init)
	if pc.CreateDataChannelErr != nil {
		return nil, pc.CreateDataChannelErr
	}
	dc := NewDataChannel(label, init)
	pc.mu.Lock()
	pc.dataChannels = append(pc.dataChannels, dc)
	pc.mu.Unlock()
	return dc, nil
}

func (pc *PeerConnection) Close() error {
	pc.record("Close", 0, nil)
	pc.mu.Lock()
	pc.closed++
	pc.mu.Unlock()
	return nil
}
