package rtc

import "fmt"

// SignalingState is the engine's signaling state.
type SignalingState int

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveLocalPrAnswer
	SignalingHaveRemoteOffer
	SignalingHaveRemotePrAnswer
	SignalingClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStable:
		return "stable"
	case SignalingHaveLocalOffer:
		return "have-local-offer"
	case SignalingHaveLocalPrAnswer:
		return "have-local-pranswer"
	case SignalingHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingHaveRemotePrAnswer:
		return "have-remote-pranswer"
	case SignalingClosed:
		return "closed"
	}
	return fmt.Sprintf("SignalingState(%d)", int(s))
}

// ICEGatheringState is the engine's ICE gathering state.
type ICEGatheringState int

const (
	ICEGatheringNew ICEGatheringState = iota
	ICEGatheringGathering
	ICEGatheringComplete
)

func (s ICEGatheringState) String() string {
	switch s {
	case ICEGatheringNew:
		return "new"
	case ICEGatheringGathering:
		return "gathering"
	case ICEGatheringComplete:
		return "complete"
	}
	return fmt.Sprintf("ICEGatheringState(%d)", int(s))
}

// ICEConnectionState is the engine's ICE connection state.
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

func (s ICEConnectionState) String() string {
	switch s {
	case ICEConnectionNew:
		return "new"
	case ICEConnectionChecking:
		return "checking"
	case ICEConnectionConnected:
		return "connected"
	case ICEConnectionCompleted:
		return "completed"
	case ICEConnectionFailed:
		return "failed"
	case ICEConnectionDisconnected:
		return "disconnected"
	case ICEConnectionClosed:
		return "closed"
	}
	return fmt.Sprintf("ICEConnectionState(%d)", int(s))
}

// DataChannelState is the engine's data channel ready state.
type DataChannelState int

const (
	DataChannelConnecting DataChannelState = iota
	DataChannelOpen
	DataChannelClosing
	DataChannelClosed
)

func (s DataChannelState) String() string {
	switch s {
	case DataChannelConnecting:
		return "connecting"
	case DataChannelOpen:
		return "open"
	case DataChannelClosing:
		return "closing"
	case DataChannelClosed:
		return "closed"
	}
	return fmt.Sprintf("DataChannelState(%d)", int(s))
}

// DeviceType selects audio or video capture devices.
type DeviceType int

const (
	DeviceAudio DeviceType = iota
	DeviceVideo
)

func (t DeviceType) String() string {
	if t == DeviceVideo {
		return "video"
	}
	return "audio"
}

// A SessionDescription is an SDP payload plus its verbatim type string
// ("offer", "pranswer", "answer" or "rollback").
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// An ICECandidate is a trickled candidate.
type ICECandidate struct {
	SDP           string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

// An ICEServer is a STUN or TURN server.
type ICEServer struct {
	URLs       []string `json:"urls" yaml:"urls"`
	Username   string   `json:"username,omitempty" yaml:"username,omitempty"`
	Credential string   `json:"credential,omitempty" yaml:"credential,omitempty"`
}

// Configuration configures a peer connection.
type Configuration struct {
	ICEServers []ICEServer
}

// OfferAnswerOptions are passed through to the engine for offers and answers.
// Answers only look at VoiceActivityDetection.
type OfferAnswerOptions struct {
	OfferToReceiveAudio    bool
	OfferToReceiveVideo    bool
	VoiceActivityDetection bool
	ICERestart             bool
}

// DefaultOfferAnswerOptions returns the options used when the consumer
// supplies none.
func DefaultOfferAnswerOptions() OfferAnswerOptions {
	return OfferAnswerOptions{VoiceActivityDetection: true}
}

// DataChannelInit configures a new data channel. At most one of
// MaxRetransmitTime and MaxRetransmits may be set.
type DataChannelInit struct {
	Ordered           bool
	MaxRetransmitTime *uint16
	MaxRetransmits    *uint16
	Protocol          string
	Negotiated        bool
	ID                *uint16
}

// DefaultDataChannelInit returns an ordered, reliable channel configuration.
func DefaultDataChannelInit() DataChannelInit {
	return DataChannelInit{Ordered: true}
}

// A StatsReport is one entry of an engine stats collection.
type StatsReport struct {
	ID        string
	Type      string
	Timestamp float64
	Values    []StatsValue
}

// A StatsValue is a single named statistic.
type StatsValue struct {
	Name, Value string
}
