package backend

import (
	"fmt"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// SignalingState is the negotiation phase reported to the consumer.
type SignalingState int

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveRemoteOffer
	SignalingHaveLocalPrAnswer
	SignalingHaveRemotePrAnswer
	SignalingClosed
)

var signalingStateNames = [...]string{
	SignalingStable:             "stable",
	SignalingHaveLocalOffer:     "have-local-offer",
	SignalingHaveRemoteOffer:    "have-remote-offer",
	SignalingHaveLocalPrAnswer:  "have-local-pranswer",
	SignalingHaveRemotePrAnswer: "have-remote-pranswer",
	SignalingClosed:             "closed",
}

func (s SignalingState) String() string {
	if s >= 0 && int(s) < len(signalingStateNames) {
		return signalingStateNames[s]
	}
	return fmt.Sprintf("SignalingState(%d)", int(s))
}

// ICEGatheringState is the ICE gathering state reported to the consumer.
type ICEGatheringState int

const (
	ICEGatheringNew ICEGatheringState = iota
	ICEGatheringGathering
	ICEGatheringComplete
)

var iceGatheringStateNames = [...]string{
	ICEGatheringNew:       "new",
	ICEGatheringGathering: "gathering",
	ICEGatheringComplete:  "complete",
}

func (s ICEGatheringState) String() string {
	if s >= 0 && int(s) < len(iceGatheringStateNames) {
		return iceGatheringStateNames[s]
	}
	return fmt.Sprintf("ICEGatheringState(%d)", int(s))
}

// ICEConnectionState is the ICE connection state reported to the consumer.
type ICEConnectionState int

const (
	ICEConnectionNew ICEConnectionState = iota
	ICEConnectionChecking
	ICEConnectionConnected
	ICEConnectionCompleted
	ICEConnectionFailed
	ICEConnectionDisconnected
	ICEConnectionClosed
)

var iceConnectionStateNames = [...]string{
	ICEConnectionNew:          "new",
	ICEConnectionChecking:     "checking",
	ICEConnectionConnected:    "connected",
	ICEConnectionCompleted:    "completed",
	ICEConnectionFailed:       "failed",
	ICEConnectionDisconnected: "disconnected",
	ICEConnectionClosed:       "closed",
}

func (s ICEConnectionState) String() string {
	if s >= 0 && int(s) < len(iceConnectionStateNames) {
		return iceConnectionStateNames[s]
	}
	return fmt.Sprintf("ICEConnectionState(%d)", int(s))
}

// DataChannelState is the ready state of a data channel.
type DataChannelState int

const (
	DataChannelConnecting DataChannelState = iota
	DataChannelOpen
	DataChannelClosing
	DataChannelClosed
)

var dataChannelStateNames = [...]string{
	DataChannelConnecting: "connecting",
	DataChannelOpen:       "open",
	DataChannelClosing:    "closing",
	DataChannelClosed:     "closed",
}

func (s DataChannelState) String() string {
	if s >= 0 && int(s) < len(dataChannelStateNames) {
		return dataChannelStateNames[s]
	}
	return fmt.Sprintf("DataChannelState(%d)", int(s))
}

// The engine enums map onto the consumer enums. Values without a mapping
// report ok=false and are dropped by the caller.

func signalingStateFromEngine(s rtc.SignalingState) (SignalingState, bool) {
	switch s {
	case rtc.SignalingStable:
		return SignalingStable, true
	case rtc.SignalingHaveLocalOffer:
		return SignalingHaveLocalOffer, true
	case rtc.SignalingHaveLocalPrAnswer:
		return SignalingHaveLocalPrAnswer, true
	case rtc.SignalingHaveRemoteOffer:
		return SignalingHaveRemoteOffer, true
	case rtc.SignalingHaveRemotePrAnswer:
		return SignalingHaveRemotePrAnswer, true
	case rtc.SignalingClosed:
		return SignalingClosed, true
	}
	return 0, false
}

func iceGatheringStateFromEngine(s rtc.ICEGatheringState) (ICEGatheringState, bool) {
	switch s {
	case rtc.ICEGatheringNew:
		return ICEGatheringNew, true
	case rtc.ICEGatheringGathering:
		return ICEGatheringGathering, true
	case rtc.ICEGatheringComplete:
		return ICEGatheringComplete, true
	}
	return 0, false
}

func iceConnectionStateFromEngine(s rtc.ICEConnectionState) (ICEConnectionState, bool) {
	switch s {
	case rtc.ICEConnectionNew:
		return ICEConnectionNew, true
	case rtc.ICEConnectionChecking:
		return ICEConnectionChecking, true
	case rtc.ICEConnectionConnected:
		return ICEConnectionConnected, true
	case rtc.ICEConnectionCompleted:
		return ICEConnectionCompleted, true
	case rtc.ICEConnectionFailed:
		return ICEConnectionFailed, true
	case rtc.ICEConnectionDisconnected:
		return ICEConnectionDisconnected, true
	case rtc.ICEConnectionClosed:
		return ICEConnectionClosed, true
	}
	return 0, false
}

func dataChannelStateFromEngine(s rtc.DataChannelState) (DataChannelState, bool) {
	switch s {
	case rtc.DataChannelConnecting:
		return DataChannelConnecting, true
	case rtc.DataChannelOpen:
		return DataChannelOpen, true
	case rtc.DataChannelClosing:
		return DataChannelClosing, true
	case rtc.DataChannelClosed:
		return DataChannelClosed, true
	}
	return 0, false
}
