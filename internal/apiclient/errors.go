package apiclient

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates the per-call cancellation timer fired before the
// response arrived. The underlying operation is abandoned best-effort; the
// server may keep working.
var ErrTimeout = errors.New("request timed out")

// ErrAborted indicates the call was cancelled explicitly by the caller.
var ErrAborted = errors.New("request aborted")

// HTTPError is returned for non-success responses. Message carries the
// backend's structured error body when present, else a generic status line.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// NetworkError wraps a connection-level failure (DNS, refused, reset).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RetriesExhausted is the terminal error of the retry wrapper. It carries
// the last observed error, not the first.
type RetriesExhausted struct {
	Attempts int
	Err      error
}

func (e *RetriesExhausted) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Err)
}

func (e *RetriesExhausted) Unwrap() error { return e.Err }

// Retryable reports whether the retry wrapper may attempt the call again.
// Everything in the taxonomy is retryable until attempts are exhausted,
// except an explicit abort by the caller.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAborted) {
		return false
	}
	var re *RetriesExhausted
	return !errors.As(err, &re)
}
