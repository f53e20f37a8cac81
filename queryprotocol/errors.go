package queryprotocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ServerQuery client.
var (
	// ErrLineTooLong indicates a protocol line exceeded MaxLineLength.
	ErrLineTooLong = errors.New("line too long")

	// ErrNotConnected indicates an operation was attempted without a connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates connect was called while already connected.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrClosed indicates the connection was closed locally.
	ErrClosed = errors.New("connection closed")

	// ErrAbandoned indicates a queued command was drained without being
	// answered.
	ErrAbandoned = errors.New("command abandoned")
)

// ConnectionError represents a transport-level failure. It is global to the
// connection: the queue is left for the caller to drain.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}

// IsServerError reports whether err is a protocol error with the given id.
func IsServerError(err error, id int64) bool {
	var info *ErrorInfo
	if !errors.As(err, &info) {
		return false
	}
	return info.ErrorID == id
}
