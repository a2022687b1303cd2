package http

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is returned when a download is stopped by its cancellation
// token. It is never wrapped in a NetworkError or StreamError so callers can
// tell a user abort apart from a failed transfer.
var ErrCancelled = errors.New("download cancelled")

// ValidationError reports malformed or missing input detected before any
// network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ServerError is returned for non-2xx responses. Body holds the response
// body read as text, verbatim.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server responded: %d - %s", e.Status, strings.TrimSpace(e.Body))
}

// NetworkError wraps a transport-level failure such as a refused connection.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StreamError reports a read failure after the response headers were
// accepted.
type StreamError struct {
	Received int64
	Err      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream: read failed after %d bytes: %v", e.Received, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
