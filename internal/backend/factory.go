package backend

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/internal/requestid"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// A Factory holds the process-wide pieces shared by every session: the engine
// and the request id generator. Create one at startup and pass it around.
type Factory struct {
	engine rtc.Engine
	ids    *requestid.Generator
}

// NewFactory creates a new Factory.
func NewFactory(engine rtc.Engine) *Factory {
	return &Factory{
		engine: engine,
		ids:    requestid.New(),
	}
}

// NewBackend creates a session backend for client. The engine connection is
// created by the first SetConfiguration call.
func (f *Factory) NewBackend(client Client) *Backend {
	return &Backend{
		factory:           f,
		client:            client,
		pendingStats:      make(map[int]StatsPromise),
		addedLocalStreams: make(map[string]rtc.MediaStream),
	}
}

// SourceLabels returns the labels of the capture devices of the given kind.
func (f *Factory) SourceLabels(kind rtc.DeviceType) ([]string, error) {
	labels, err := f.engine.EnumerateDevices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s devices: %w", kind, err)
	}
	log.Debug().Str("kind", kind.String()).Strs("labels", labels).Msg("enumerated devices")
	return labels, nil
}

// CreateLocalStream creates a local stream capturing from the given sources.
// Either source may be empty.
func (f *Factory) CreateLocalStream(audioSource, videoSource string) (rtc.MediaStream, error) {
	stream, err := f.engine.CreateMediaStream(audioSource, videoSource)
	if err != nil {
		return nil, fmt.Errorf("failed to create local stream: %w", err)
	}
	log.Info().
		Str("stream", stream.ID()).
		Str("audio", audioSource).
		Str("video", videoSource).
		Msg("created local stream")
	return stream, nil
}

// Close releases the engine.
func (f *Factory) Close() error {
	return f.engine.Close()
}
