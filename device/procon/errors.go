package procon

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge is returned when a frame payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload exceeds 62 bytes")
	// ErrSPIMiss is returned for SPI reads against an unknown selector.
	ErrSPIMiss = errors.New("spi selector not present")
	// ErrSPIBadRange is returned when offset+length runs past a flash region.
	ErrSPIBadRange = errors.New("spi read out of range")
	// ErrAlreadyServing is returned by Serve when a session is already running.
	ErrAlreadyServing = errors.New("controller is already serving")
)

// TransportError reports a failed read or write on the controller transport.
// It is fatal to the loop that produced it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
