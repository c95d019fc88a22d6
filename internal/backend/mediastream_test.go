package backend

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtctunnel/rtcbackend/internal/engine/fake"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

func TestRemoteStreamAdded(t *testing.T) {
	b, pc, client := newTestBackend(t)

	native := &fake.MediaStream{StreamID: "remote-1"}
	pc.Observer.RemoteStreamAdded(native, []string{"mic"}, []string{"cam", "screen"})
	assert.Empty(t, client.streams, "add-stream is posted")
	require.Len(t, b.RemoteStreams(), 1)

	client.runTasks()
	require.Len(t, client.streams, 1)
	ms := client.streams[0]
	assert.Equal(t, "remote-1", ms.ID)
	assert.Equal(t, native, ms.Native())

	audio := ms.AudioSources()
	require.Len(t, audio, 1)
	assert.Equal(t, "mic", audio[0].Name)
	assert.Equal(t, rtc.DeviceAudio, audio[0].Kind)

	video := ms.VideoSources()
	require.Len(t, video, 2)
	assert.Equal(t, "cam", video[0].Name)
	assert.Equal(t, "screen", video[1].Name)

	ids := map[string]struct{}{}
	for _, src := range ms.Sources {
		_, err := uuid.Parse(src.ID)
		assert.NoError(t, err)
		ids[src.ID] = struct{}{}
	}
	assert.Len(t, ids, 3, "source ids are unique")

	pc.Observer.RemoteStreamRemoved(native)
	assert.Empty(t, b.RemoteStreams())
	pc.Observer.RemoteStreamRemoved(native)
}

func TestStatsResponse(t *testing.T) {
	res := statsResponseFromEngine([]rtc.StatsReport{
		{ID: "a", Type: "codec", Timestamp: 1, Values: []rtc.StatsValue{{Name: "mimeType", Value: "audio/opus"}}},
		{ID: "b", Type: "transport", Timestamp: 2},
	})
	require.Len(t, res.Reports, 2)
	assert.Equal(t, "a", res.Reports[0].ID)
	assert.Equal(t, "b", res.Reports[1].ID)

	v, ok := res.Report("a").Stat("mimeType")
	assert.True(t, ok)
	assert.Equal(t, "audio/opus", v)
	_, ok = res.Report("b").Stat("mimeType")
	assert.False(t, ok)
	assert.Nil(t, res.Report("c"))
}

func TestFactoryDevices(t *testing.T) {
	engine := fake.New(fake.WithDevices(rtc.DeviceVideo, "cam0", "cam1"))
	f := NewFactory(engine)

	labels, err := f.SourceLabels(rtc.DeviceVideo)
	require.NoError(t, err)
	assert.Equal(t, []string{"cam0", "cam1"}, labels)

	labels, err = f.SourceLabels(rtc.DeviceAudio)
	require.NoError(t, err)
	assert.Equal(t, []string{"fake-microphone"}, labels)

	stream, err := f.CreateLocalStream("fake-microphone", "cam0")
	require.NoError(t, err)
	assert.NotEmpty(t, stream.ID())

	_, err = f.CreateLocalStream("", "")
	assert.ErrorIs(t, err, fake.ErrRefused)

	require.NoError(t, f.Close())
	assert.True(t, engine.Closed())
}
