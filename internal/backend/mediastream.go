package backend

import (
	"github.com/google/uuid"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// A MediaSource is one remote track as seen by the consumer.
type MediaSource struct {
	ID   string
	Name string
	Kind rtc.DeviceType
}

// A MediaStream groups the sources of one remote stream.
type MediaStream struct {
	ID      string
	Sources []*MediaSource

	native rtc.MediaStream
}

func newRemoteMediaStream(native rtc.MediaStream, audioTrackIDs, videoTrackIDs []string) *MediaStream {
	ms := &MediaStream{ID: native.ID(), native: native}
	for _, trackID := range audioTrackIDs {
		ms.Sources = append(ms.Sources, &MediaSource{ID: uuid.NewString(), Name: trackID, Kind: rtc.DeviceAudio})
	}
	for _, trackID := range videoTrackIDs {
		ms.Sources = append(ms.Sources, &MediaSource{ID: uuid.NewString(), Name: trackID, Kind: rtc.DeviceVideo})
	}
	return ms
}

// AudioSources returns the audio sources of the stream.
func (ms *MediaStream) AudioSources() []*MediaSource {
	return ms.sourcesOf(rtc.DeviceAudio)
}

// VideoSources returns the video sources of the stream.
func (ms *MediaStream) VideoSources() []*MediaSource {
	return ms.sourcesOf(rtc.DeviceVideo)
}

func (ms *MediaStream) sourcesOf(kind rtc.DeviceType) []*MediaSource {
	var sources []*MediaSource
	for _, src := range ms.Sources {
		if src.Kind == kind {
			sources = append(sources, src)
		}
	}
	return sources
}

// Native returns the engine stream handle.
func (ms *MediaStream) Native() rtc.MediaStream {
	return ms.native
}
