package mhz19b

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPort is returned when a driver is requested for an empty port identifier.
	ErrEmptyPort = errors.New("mhz19b: empty port identifier")
	// ErrNotOpen is returned by commands issued on a closed Driver.
	ErrNotOpen = errors.New("mhz19b: driver not open")
	// ErrShortResponse is returned when a response is not exactly FrameSize bytes.
	ErrShortResponse = errors.New("mhz19b: short response")
	// ErrOutOfRange is returned when a command argument does not fit in 16 bits.
	ErrOutOfRange = errors.New("mhz19b: argument out of range")
)

// OpError describes a failed transport operation on a port.
type OpError struct {
	// Op is one of "open", "configure", "close", "drain", "write" or "read".
	Op   string
	Port string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("mhz19b: %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
