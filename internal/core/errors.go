package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks failures of the network path: fetch or socket send failed.
	ErrTransient = errors.New("transient network error")
	// ErrRejected marks requests the server refused. They are not retried automatically.
	ErrRejected = errors.New("server rejected request")
	// ErrStaleEvent marks events or responses addressed to a torn down or superseded room.
	ErrStaleEvent = errors.New("stale event")

	ErrMissingID       = errors.New("record has no id")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrUnknownItem     = errors.New("unknown item")
	ErrRoomAlreadyOpen = errors.New("room already open")
	ErrNotJoined       = errors.New("room not joined")
	ErrRoomClosed      = errors.New("room closed")
)

// RejectionError is a 4xx style refusal. errors.Is(err, ErrRejected) holds for it.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", ErrRejected, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrRejected, e.Status, e.Message)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
