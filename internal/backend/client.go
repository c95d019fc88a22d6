package backend

import "github.com/rtctunnel/rtcbackend/pkg/rtc"

// A Client is the consumer of a Backend. State changes are delivered
// directly; ICE candidates, streams and data channels are posted with PostTask.
type Client interface {
	SignalingStateChanged(state SignalingState)
	ICEGatheringStateChanged(state ICEGatheringState)
	ICEConnectionStateChanged(state ICEConnectionState)
	NegotiationNeeded()

	ICECandidate(candidate ICECandidate)
	AddStream(stream *MediaStream)
	DataChannel(handler *DataChannelHandler)

	// LocalStreams returns the streams of the local senders, in the order
	// they were added.
	LocalStreams() []rtc.MediaStream

	// PostTask runs task later on the client's execution context.
	PostTask(task func())
}
