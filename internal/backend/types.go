package backend

import (
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// SDPType is the type of a session description.
type SDPType int

const (
	SDPTypeOffer SDPType = iota + 1
	SDPTypePranswer
	SDPTypeAnswer
	SDPTypeRollback
)

func (t SDPType) String() string {
	switch t {
	case SDPTypeOffer:
		return "offer"
	case SDPTypePranswer:
		return "pranswer"
	case SDPTypeAnswer:
		return "answer"
	case SDPTypeRollback:
		return "rollback"
	}
	return ""
}

// ParseSDPType parses one of "offer", "pranswer", "answer" or "rollback".
func ParseSDPType(s string) (SDPType, error) {
	switch s {
	case "offer":
		return SDPTypeOffer, nil
	case "pranswer":
		return SDPTypePranswer, nil
	case "answer":
		return SDPTypeAnswer, nil
	case "rollback":
		return SDPTypeRollback, nil
	}
	return 0, &ParseError{What: "SDP type " + s, Err: ErrInvalidSDPType}
}

// A SessionDescription is a typed SDP payload.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

func (desc SessionDescription) toEngine() rtc.SessionDescription {
	return rtc.SessionDescription{Type: desc.Type.String(), SDP: desc.SDP}
}

func sessionDescriptionFromEngine(desc rtc.SessionDescription) (*SessionDescription, error) {
	typ, err := ParseSDPType(desc.Type)
	if err != nil {
		return nil, err
	}
	return &SessionDescription{Type: typ, SDP: desc.SDP}, nil
}

// An ICECandidate is a candidate line plus the media section it belongs to.
type ICECandidate struct {
	Candidate     string
	SDPMid        string
	SDPMLineIndex uint16
}

// An ICEServer is a STUN or TURN server.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Configuration configures the session.
type Configuration struct {
	ICEServers []ICEServer
}

func (cfg Configuration) toEngine() rtc.Configuration {
	var out rtc.Configuration
	for _, server := range cfg.ICEServers {
		out.ICEServers = append(out.ICEServers, rtc.ICEServer{
			URLs:       append([]string(nil), server.URLs...),
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return out
}

// OfferOptions are the createOffer options.
type OfferOptions struct {
	OfferToReceiveAudio    bool
	OfferToReceiveVideo    bool
	VoiceActivityDetection bool
	ICERestart             bool
}

// AnswerOptions are the createAnswer options.
type AnswerOptions struct {
	VoiceActivityDetection bool
}

// Completions. Each is invoked exactly once.
type (
	SessionDescriptionPromise func(desc *SessionDescription, err error)
	VoidPromise               func(err error)
	StatsPromise              func(res *StatsResponse, err error)
)

// DataChannelOptions is the consumer dictionary for createDataChannel. The
// retransmit limits arrive in string form; an empty string means unset.
type DataChannelOptions struct {
	Ordered           *bool
	Negotiated        bool
	ID                *uint16
	Protocol          string
	MaxRetransmits    string
	MaxRetransmitTime string
}
