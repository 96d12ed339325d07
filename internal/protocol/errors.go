package protocol

import (
	"errors"
	"fmt"
)

// Status is the single byte written back after every command frame.
type Status byte

const (
	StatusSuccess    Status = 0xFF
	StatusTimeout    Status = 0xE0
	StatusUnknownCmd Status = 0xE1
	StatusLength     Status = 0xE2
	StatusGeneric    Status = 0xEE
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	case StatusUnknownCmd:
		return "unknown_cmd"
	case StatusLength:
		return "length"
	case StatusGeneric:
		return "error"
	}
	return fmt.Sprintf("status(%#02x)", byte(s))
}

var (
	// ErrTimeout indicates the peer stopped sending in the middle of a frame.
	ErrTimeout = errors.New("timed out waiting for data")
	// ErrUnknownCommand indicates an action byte with no handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrLength indicates a payload longer than the sector store.
	ErrLength = errors.New("payload length exceeds store")
	// ErrClosed indicates the transport stopped delivering bytes.
	ErrClosed = errors.New("transport closed")
)

// StatusError wraps a non-success status from a reply.
type StatusError struct {
	Status Status
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("command failed: %s (%#02x)", e.Status, byte(e.Status))
}

// Unwrap maps the status back to its sentinel error.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case StatusTimeout:
		return ErrTimeout
	case StatusUnknownCmd:
		return ErrUnknownCommand
	case StatusLength:
		return ErrLength
	}
	return nil
}

// StatusOf maps a frame result to the status byte reported for it.
func StatusOf(err error) Status {
	var se *StatusError
	switch {
	case err == nil:
		return StatusSuccess
	case errors.As(err, &se):
		return se.Status
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	case errors.Is(err, ErrUnknownCommand):
		return StatusUnknownCmd
	case errors.Is(err, ErrLength):
		return StatusLength
	}
	return StatusGeneric
}

// Err converts a status into the error it reports, nil for success.
func (s Status) Err() error {
	if s == StatusSuccess {
		return nil
	}
	return &StatusError{Status: s}
}
