package coordinator

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingAPIKey is returned by New without an API key
var ErrMissingAPIKey = errors.New("coordinator API key is required")

// StatusError is a non-2xx answer from the coordinator
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Transient reports whether repeating the request may succeed
func (e *StatusError) Transient() bool {
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}

// TransportError means the coordinator could not be reached or the
// connection broke before a response was read.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transient is always true: the coordinator may come back
func (e *TransportError) Transient() bool {
	return true
}
