package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtctunnel/rtcbackend/internal/engine/fake"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

const testSDP = "v=0\r\no=- 4611731400430051336 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

type testClient struct {
	signaling         []SignalingState
	gathering         []ICEGatheringState
	connection        []ICEConnectionState
	negotiationNeeded int
	candidates        []ICECandidate
	streams           []*MediaStream
	channels          []*DataChannelHandler
	localStreams      []rtc.MediaStream
	tasks             []func()
}

func (c *testClient) SignalingStateChanged(s SignalingState) { c.signaling = append(c.signaling, s) }
func (c *testClient) ICEGatheringStateChanged(s ICEGatheringState) {
	c.gathering = append(c.gathering, s)
}
func (c *testClient) ICEConnectionStateChanged(s ICEConnectionState) {
	c.connection = append(c.connection, s)
}
func (c *testClient) NegotiationNeeded() { c.negotiationNeeded++ }
func (c *testClient) ICECandidate(candidate ICECandidate) { c.candidates = append(c.candidates, candidate) }
func (c *testClient) AddStream(stream *MediaStream) { c.streams = append(c.streams, stream) }
func (c *testClient) DataChannel(h *DataChannelHandler) { c.channels = append(c.channels, h) }
func (c *testClient) LocalStreams() []rtc.MediaStream { return c.localStreams }
func (c *testClient) PostTask(task func()) { c.tasks = append(c.tasks, task) }

func (c *testClient) runTasks() {
	tasks := c.tasks
	c.tasks = nil
	for _, task := range tasks {
		task()
	}
}

type descResult struct {
	calls int
	desc  *SessionDescription
	err   error
}

func (r *descResult) promise() SessionDescriptionPromise {
	return func(desc *SessionDescription, err error) {
		r.calls++
		r.desc, r.err = desc, err
	}
}

type voidResult struct {
	calls int
	err   error
}

func (r *voidResult) promise() VoidPromise {
	return func(err error) {
		r.calls++
		r.err = err
	}
}

type statsResult struct {
	calls int
	res   *StatsResponse
	err   error
}

func (r *statsResult) promise() StatsPromise {
	return func(res *StatsResponse, err error) {
		r.calls++
		r.res, r.err = res, err
	}
}

type channelClient struct {
	states []DataChannelState
	texts  []string
	blobs  [][]byte
}

func (c *channelClient) ReadyStateChanged(s DataChannelState) { c.states = append(c.states, s) }
func (c *channelClient) TextReceived(text string) { c.texts = append(c.texts, text) }
func (c *channelClient) BinaryReceived(data []byte) { c.blobs = append(c.blobs, data) }

func newTestBackend(t *testing.T) (*Backend, *fake.PeerConnection, *testClient) {
	t.Helper()
	engine := fake.New()
	client := &testClient{}
	b := NewFactory(engine).NewBackend(client)
	require.NoError(t, b.SetConfiguration(Configuration{
		ICEServers: []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	}))
	pcs := engine.Connections()
	require.Len(t, pcs, 1)
	return b, pcs[0], client
}
