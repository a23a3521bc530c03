package call

import (
	"errors"
	"fmt"
)

var (
	ErrRoomFull         = errors.New("room is full")
	ErrUnexpectedSignal = errors.New("unexpected signal")
	ErrNoPeerConnection = errors.New("no peer connection")
	ErrMediaUnavailable = errors.New("media devices unavailable")
	ErrSignalingClosed  = errors.New("signaling connection closed")
	ErrCallEnded        = errors.New("call has ended")
	ErrBadPayload       = errors.New("invalid payload")
)

// CallError records the step of the call that failed.
type CallError struct {
	Op      string
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}
