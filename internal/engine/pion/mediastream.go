package pion

import (
	"github.com/pion/webrtc/v4"
)

// mediaStream is a group of tracks sharing one stream id. Local streams hold
// TrackLocal values; remote streams only record track ids.
type mediaStream struct {
	id     string
	tracks []webrtc.TrackLocal
	remote map[string]webrtc.RTPCodecType
}

func (ms *mediaStream) ID() string {
	return ms.id
}

// Tracks returns the local tracks of the stream. Samples written to them are
// sent to every connection the stream was added to.
func (ms *mediaStream) Tracks() []webrtc.TrackLocal {
	return ms.tracks
}
