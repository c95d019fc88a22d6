package pion

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

type result struct {
	id      int
	desc    rtc.SessionDescription
	reports []rtc.StatsReport
	err     error
}

type recorder struct {
	results    chan result
	candidates chan rtc.ICECandidate
	channels   chan rtc.DataChannel
	streams    chan rtc.MediaStream
	removed    chan rtc.MediaStream
}

func newRecorder() *recorder {
	return &recorder{
		results:    make(chan result, 16),
		candidates: make(chan rtc.ICECandidate, 256),
		channels:   make(chan rtc.DataChannel, 4),
		streams:    make(chan rtc.MediaStream, 4),
		removed:    make(chan rtc.MediaStream, 4),
	}
}

func (r *recorder) RequestSucceeded(id int) { r.results <- result{id: id} }
func (r *recorder) DescriptionRequestSucceeded(id int, desc rtc.SessionDescription) {
	r.results <- result{id: id, desc: desc}
}
func (r *recorder) StatsRequestSucceeded(id int, reports []rtc.StatsReport) {
	r.results <- result{id: id, reports: reports}
}
func (r *recorder) RequestFailed(id int, err error) { r.results <- result{id: id, err: err} }
func (r *recorder) NegotiationNeeded()               {}
func (r *recorder) RemoteStreamAdded(stream rtc.MediaStream, audio, video []string) {
	r.streams <- stream
}
func (r *recorder) RemoteStreamRemoved(stream rtc.MediaStream)             { r.removed <- stream }
func (r *recorder) ICECandidateFound(c rtc.ICECandidate)                   { r.candidates <- c }
func (r *recorder) SignalingStateChanged(state rtc.SignalingState)         {}
func (r *recorder) ICEGatheringStateChanged(state rtc.ICEGatheringState)   {}
func (r *recorder) ICEConnectionStateChanged(state rtc.ICEConnectionState) {}
func (r *recorder) DataChannelCreated(dc rtc.DataChannel)                  { r.channels <- dc }

func (r *recorder) wait(t *testing.T, id int) result {
	t.Helper()
	select {
	case res := <-r.results:
		require.Equal(t, id, res.id)
		require.NoError(t, res.err)
		return res
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for request %d", id)
	}
	return result{}
}

type channelRecorder struct {
	dc       rtc.DataChannel
	states   chan rtc.DataChannelState
	messages chan string
}

func newChannelRecorder(dc rtc.DataChannel) *channelRecorder {
	return &channelRecorder{
		dc:       dc,
		states:   make(chan rtc.DataChannelState, 16),
		messages: make(chan string, 16),
	}
}

func (c *channelRecorder) StateChanged() { c.states <- c.dc.State() }
func (c *channelRecorder) MessageReceived(data []byte, binary bool) {
	c.messages <- string(data)
}

func newTestEngine(t *testing.T) *Engine {
	e, err := New(WithLoopbackCandidates(true))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func trickle(ctx context.Context, from *recorder, to rtc.PeerConnection) {
	for {
		select {
		case c := <-from.candidates:
			to.AddICECandidate(c)
		case <-ctx.Done():
			return
		}
	}
}

func TestEngineDevices(t *testing.T) {
	e := newTestEngine(t)

	labels, err := e.EnumerateDevices(rtc.DeviceAudio)
	require.NoError(t, err)
	assert.Equal(t, []string{AudioSourceLabel}, labels)

	labels, err = e.EnumerateDevices(rtc.DeviceVideo)
	require.NoError(t, err)
	assert.Equal(t, []string{VideoSourceLabel}, labels)

	stream, err := e.CreateMediaStream(AudioSourceLabel, VideoSourceLabel)
	require.NoError(t, err)
	ms := stream.(*mediaStream)
	assert.Len(t, ms.Tracks(), 2)
	for _, track := range ms.Tracks() {
		assert.Equal(t, ms.ID(), track.StreamID())
	}

	_, err = e.CreateMediaStream("", "")
	assert.Error(t, err)
	_, err = e.CreateMediaStream("microphone", "")
	assert.Error(t, err)
}

func TestEngineRejectsInvalidInput(t *testing.T) {
	e := newTestEngine(t)
	pc, err := e.NewPeerConnection(rtc.Configuration{}, newRecorder())
	require.NoError(t, err)
	defer pc.Close()

	assert.Error(t, pc.SetLocalDescription(1, rtc.SessionDescription{Type: "nonsense"}))
	assert.Error(t, pc.ParseICECandidate(rtc.ICECandidate{SDP: "candidate:garbage"}))
	assert.NoError(t, pc.ParseICECandidate(rtc.ICECandidate{SDP: "candidate:1966762134 1 udp 2122260223 192.168.1.7 54321 typ host"}))

	_, ok := pc.LocalDescription()
	assert.False(t, ok)
}

func TestEngineLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("requires loopback networking")
	}

	e1, e2 := newTestEngine(t), newTestEngine(t)
	r1, r2 := newRecorder(), newRecorder()

	pc1, err := e1.NewPeerConnection(rtc.Configuration{}, r1)
	require.NoError(t, err)
	defer pc1.Close()
	pc2, err := e2.NewPeerConnection(rtc.Configuration{}, r2)
	require.NoError(t, err)
	defer pc2.Close()

	dc1, err := pc1.CreateDataChannel("chat", rtc.DefaultDataChannelInit())
	require.NoError(t, err)
	assert.Equal(t, "chat", dc1.Label())
	assert.True(t, dc1.Ordered())
	c1 := newChannelRecorder(dc1)
	dc1.RegisterObserver(c1)

	stream, err := e1.CreateMediaStream(AudioSourceLabel, "")
	require.NoError(t, err)
	require.NoError(t, pc1.AddStream(stream))

	require.NoError(t, pc1.CreateOffer(1, rtc.DefaultOfferAnswerOptions()))
	offer := r1.wait(t, 1).desc
	assert.Equal(t, "offer", offer.Type)
	require.NoError(t, pc1.ParseSessionDescription(offer))

	require.NoError(t, pc1.SetLocalDescription(2, offer))
	r1.wait(t, 2)
	require.NoError(t, pc2.SetRemoteDescription(3, offer))
	r2.wait(t, 3)

	require.NoError(t, pc2.CreateAnswer(4, rtc.DefaultOfferAnswerOptions()))
	answer := r2.wait(t, 4).desc
	assert.Equal(t, "answer", answer.Type)
	require.NoError(t, pc2.SetLocalDescription(5, answer))
	r2.wait(t, 5)
	require.NoError(t, pc1.SetRemoteDescription(6, answer))
	r1.wait(t, 6)

	local, ok := pc1.LocalDescription()
	require.True(t, ok)
	assert.Equal(t, "offer", local.Type)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go trickle(ctx, r1, pc2)
	go trickle(ctx, r2, pc1)

	timeout := time.After(20 * time.Second)
	for open := false; !open; {
		select {
		case state := <-c1.states:
			open = state == rtc.DataChannelOpen
		case <-timeout:
			t.Fatal("data channel never opened")
		}
	}
	require.NoError(t, dc1.SendText("hello"))

	var dc2 rtc.DataChannel
	select {
	case dc2 = <-r2.channels:
	case <-timeout:
		t.Fatal("remote data channel never arrived")
	}
	c2 := newChannelRecorder(dc2)
	dc2.RegisterObserver(c2)
	select {
	case msg := <-c2.messages:
		assert.Equal(t, "hello", msg)
	case <-timeout:
		t.Fatal("message never arrived")
	}

	require.NoError(t, pc1.GetStats(7))
	stats := r1.wait(t, 7)
	assert.NotEmpty(t, stats.reports)
}

// negotiate runs one offer/answer exchange starting at request id first.
func negotiate(t *testing.T, first int, pc1 rtc.PeerConnection, r1 *recorder, pc2 rtc.PeerConnection, r2 *recorder) {
	t.Helper()
	require.NoError(t, pc1.CreateOffer(first, rtc.DefaultOfferAnswerOptions()))
	offer := r1.wait(t, first).desc
	require.NoError(t, pc1.SetLocalDescription(first+1, offer))
	r1.wait(t, first+1)
	require.NoError(t, pc2.SetRemoteDescription(first+2, offer))
	r2.wait(t, first+2)
	require.NoError(t, pc2.CreateAnswer(first+3, rtc.DefaultOfferAnswerOptions()))
	answer := r2.wait(t, first+3).desc
	require.NoError(t, pc2.SetLocalDescription(first+4, answer))
	r2.wait(t, first+4)
	require.NoError(t, pc1.SetRemoteDescription(first+5, answer))
	r1.wait(t, first+5)
}

func TestEngineRemoteStreamRemoved(t *testing.T) {
	if testing.Short() {
		t.Skip("requires loopback networking")
	}

	e1, e2 := newTestEngine(t), newTestEngine(t)
	r1, r2 := newRecorder(), newRecorder()

	pc1, err := e1.NewPeerConnection(rtc.Configuration{}, r1)
	require.NoError(t, err)
	defer pc1.Close()
	pc2, err := e2.NewPeerConnection(rtc.Configuration{}, r2)
	require.NoError(t, err)
	defer pc2.Close()

	stream, err := e1.CreateMediaStream(AudioSourceLabel, "")
	require.NoError(t, err)
	require.NoError(t, pc1.AddStream(stream))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go trickle(ctx, r1, pc2)
	go trickle(ctx, r2, pc1)

	// the remote track only surfaces once packets flow
	track := stream.(*mediaStream).Tracks()[0].(*webrtc.TrackLocalStaticSample)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				track.WriteSample(media.Sample{Data: []byte{0xf8, 0xff, 0xfe}, Duration: 20 * time.Millisecond})
			case <-ctx.Done():
				return
			}
		}
	}()

	negotiate(t, 1, pc1, r1, pc2, r2)

	timeout := time.After(20 * time.Second)
	select {
	case added := <-r2.streams:
		assert.Equal(t, stream.ID(), added.ID())
	case <-timeout:
		t.Fatal("remote stream never arrived")
	}

	require.NoError(t, pc1.RemoveStream(stream))
	negotiate(t, 7, pc1, r1, pc2, r2)

	select {
	case removed := <-r2.removed:
		assert.Equal(t, stream.ID(), removed.ID())
	case <-timeout:
		t.Fatal("remote stream was never removed")
	}
}
