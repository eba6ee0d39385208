package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates no complete frame arrived before the guard elapsed.
	ErrTimeout = errors.New("timeout")
	// ErrChecksum indicates a servo frame failed checksum verification.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrParamOverrun indicates a control frame carried more than MaxParams params.
	ErrParamOverrun = errors.New("param overrun")
	// ErrMismatch indicates a servo reply is not the one expected.
	ErrMismatch = errors.New("unexpected reply")
)

// StatusError is the non-zero error byte reported by a servo.
type StatusError struct {
	ID   byte
	Code byte
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("servo %d status error 0x%02x", e.ID, e.Code)
}
