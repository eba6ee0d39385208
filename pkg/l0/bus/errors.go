package bus

import (
	"errors"
	"fmt"
)

var (
	// ErrOffline indicates the bus is unusable until it is recovered.
	ErrOffline = errors.New("bus offline")
	// ErrTxTimeout indicates the transmitter didn't drain in time.
	ErrTxTimeout = errors.New("transmit timeout")
	// ErrNotReceiving indicates a receive outside of a receive window.
	ErrNotReceiving = errors.New("not in receive mode")
)

// PeripheralError is a failed peripheral operation.
type PeripheralError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *PeripheralError) Error() string {
	return fmt.Sprintf("peripheral %s: %v", e.Op, e.Err)
}

// Unwrap returns the cause.
func (e *PeripheralError) Unwrap() error {
	return e.Err
}
