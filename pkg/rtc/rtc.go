// Package rtc defines the capability set a native WebRTC engine has to
// provide so a session backend can drive it. Engines implement PeerConnection
// and DataChannel; the backend implements Observer and DataChannelObserver.
package rtc

// An Engine creates peer connections and local media.
type Engine interface {
	NewPeerConnection(cfg Configuration, observer Observer) (PeerConnection, error)
	CreateMediaStream(audioSource, videoSource string) (MediaStream, error)
	EnumerateDevices(kind DeviceType) ([]string, error)
	Close() error
}

// A PeerConnection abstracts a native peer connection.
//
// Methods taking a request id are asynchronous: the result is reported to the
// Observer with the same id. A non-nil error means the request was not
// dispatched and no callback will follow.
type PeerConnection interface {
	SetConfiguration(cfg Configuration) error

	CreateOffer(requestID int, options OfferAnswerOptions) error
	CreateAnswer(requestID int, options OfferAnswerOptions) error

	ParseSessionDescription(desc SessionDescription) error
	SetLocalDescription(requestID int, desc SessionDescription) error
	SetRemoteDescription(requestID int, desc SessionDescription) error
	LocalDescription() (SessionDescription, bool)
	RemoteDescription() (SessionDescription, bool)

	ParseICECandidate(candidate ICECandidate) error
	AddICECandidate(candidate ICECandidate) error

	AddStream(stream MediaStream) error
	RemoveStream(stream MediaStream) error

	GetStats(requestID int) error

	CreateDataChannel(label string, init DataChannelInit) (DataChannel, error)

	Close() error
}

// An Observer receives engine notifications. Engines must deliver every
// callback on the execution context that owns the session.
type Observer interface {
	RequestSucceeded(requestID int)
	DescriptionRequestSucceeded(requestID int, desc SessionDescription)
	StatsRequestSucceeded(requestID int, reports []StatsReport)
	RequestFailed(requestID int, err error)

	NegotiationNeeded()

	RemoteStreamAdded(stream MediaStream, audioTrackIDs, videoTrackIDs []string)
	RemoteStreamRemoved(stream MediaStream)

	ICECandidateFound(candidate ICECandidate)

	SignalingStateChanged(state SignalingState)
	ICEGatheringStateChanged(state ICEGatheringState)
	ICEConnectionStateChanged(state ICEConnectionState)

	DataChannelCreated(dc DataChannel)
}

// A DataChannel abstracts a native data channel.
type DataChannel interface {
	Label() string
	Ordered() bool
	MaxRetransmitTime() *uint16
	MaxRetransmits() *uint16
	Protocol() string
	Negotiated() bool
	ID() *uint16
	State() DataChannelState
	BufferedAmount() uint64

	SendText(text string) error
	Send(data []byte) error
	Close() error

	RegisterObserver(observer DataChannelObserver)
	UnregisterObserver()
}

// A DataChannelObserver receives data channel notifications.
type DataChannelObserver interface {
	StateChanged()
	MessageReceived(data []byte, binary bool)
}

// A MediaStream is an opaque engine stream handle.
type MediaStream interface {
	ID() string
}
