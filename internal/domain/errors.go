package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("framedrive: invalid configuration")

	// ErrInvalidTransition is returned when a session moves between
	// lifecycle states in an order the state machine does not allow.
	ErrInvalidTransition = errors.New("framedrive: invalid session state transition")
)

// ArgumentArityError is returned when the driver is not given exactly the
// positional arguments it needs. It is reported before any side effect.
type ArgumentArityError struct {
	Want int
	Got  int
}

func (e *ArgumentArityError) Error() string {
	return fmt.Sprintf("expected %d arguments (<backend> <commands> <output>), got %d", e.Want, e.Got)
}

// ProtocolFormatError indicates a frame that violates the Content-Length
// framing: a header without the expected prefix, a length that is not a
// non-negative integer, or a malformed separator line. It is fatal to the
// decode loop that produced it.
type ProtocolFormatError struct {
	Header string
	Reason string
}

func (e *ProtocolFormatError) Error() string {
	return fmt.Sprintf("invalid packet format: %s: %q", e.Reason, e.Header)
}

// ProcessSpawnError indicates the backend executable could not be launched.
type ProcessSpawnError struct {
	Path string
	Err  error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("spawn backend %s: %v", e.Path, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error {
	return e.Err
}

// StreamIOError wraps a read or write failure on the command file, the
// output file, the encoded artifact or one of the backend's streams.
type StreamIOError struct {
	// Op names the operation in progress, e.g. "read payload".
	Op string
	// Path is the file involved, empty for process streams.
	Path string
	Err  error
}

func (e *StreamIOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StreamIOError) Unwrap() error {
	return e.Err
}
