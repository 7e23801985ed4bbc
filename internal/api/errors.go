package api

import (
	"errors"
	"fmt"
)

// ErrNilClient is returned by every method on a nil *Client.
var ErrNilClient = errors.New("nil client")

// TransportError is a failed round trip: the request never produced a
// well-formed reply (network failure, unreadable or unparseable body).
type TransportError struct {
	Op         Op
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-lifecycle call (images) rejected by the platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}
