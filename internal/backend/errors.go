package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestPending is returned when a request of the same class is
	// already waiting for the engine.
	ErrRequestPending = errors.New("InvalidStateError: a request of the same kind is already pending")
	// ErrClosed is returned for operations on a session that was stopped or
	// never configured.
	ErrClosed = errors.New("InvalidStateError: peer connection is closed")
	// ErrNotSupported is returned for operations this backend does not implement.
	ErrNotSupported = errors.New("NotSupportedError")
	// ErrInvalidDataChannelInit is returned when data channel options conflict.
	ErrInvalidDataChannelInit = errors.New("invalid data channel init")
	// ErrAddICECandidate is returned when the engine refuses a candidate.
	ErrAddICECandidate = errors.New("Failed to add ICECandidate")
	// ErrGetStats is returned when the engine refuses a stats request.
	ErrGetStats = errors.New("Failed to get stats")
	// ErrInvalidSDPType is returned for SDP type strings other than offer,
	// pranswer, answer and rollback.
	ErrInvalidSDPType = errors.New("invalid SDP type")
)

// A ParseError reports input that was rejected before reaching the engine.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
