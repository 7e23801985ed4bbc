// Package classify turns a raw plugin reply into exactly one Outcome.
package classify

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/zpdzap/boxctl/internal/api"
)

// Kind is the classification of one lifecycle reply.
type Kind string

const (
	KindSuccess          Kind = "success"
	KindRateLimited      Kind = "rate_limited"
	KindUnauthenticated  Kind = "unauthenticated"
	KindContainerError   Kind = "container_error"
	KindPlatformError    Kind = "platform_error"
	KindMalformed        Kind = "malformed"
	KindTransportFailure Kind = "transport_failure"
	KindTimeout          Kind = "timeout"
)

var (
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthenticated = errors.New("not logged in or competition paused")
	ErrContainer       = errors.New("container error")
	ErrPlatform        = errors.New("platform error")
	ErrMalformed       = errors.New("malformed response")
	ErrTransport       = errors.New("transport failure")
	ErrTimeout         = errors.New("timed out")
)

func (k Kind) sentinel() error {
	switch k {
	case KindRateLimited:
		return ErrRateLimited
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindContainerError:
		return ErrContainer
	case KindPlatformError:
		return ErrPlatform
	case KindMalformed:
		return ErrMalformed
	case KindTransportFailure:
		return ErrTransport
	case KindTimeout:
		return ErrTimeout
	}
	return nil
}

// Endpoint is where a live sandbox accepts connections.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Outcome is the single classification of one lifecycle call.
type Outcome struct {
	Op   api.Op
	Kind Kind

	// Success fields. Endpoint is nil for renew and stop.
	Endpoint  *Endpoint
	ExpiresAt time.Time
	// Reattached is set when request found an already running sandbox.
	Reattached bool

	// Message is the server-supplied text, verbatim, or a description of
	// what went wrong for kinds without server text.
	Message string
	// Gone marks a container error saying the sandbox no longer exists.
	Gone bool

	StatusCode int
	RequestID  string
}

// Success reports whether the call succeeded.
func (o Outcome) Success() bool { return o.Kind == KindSuccess }

// Recoverable reports whether the user may retry the same action right away.
// Every non-success outcome is recoverable; success needs no retry.
func (o Outcome) Recoverable() bool { return o.Kind != KindSuccess }

// Failure returns the outcome as a *Error, or nil on success.
func (o Outcome) Failure() *Error {
	if o.Success() {
		return nil
	}
	return &Error{Op: o.Op, Kind: o.Kind, Message: o.Message, StatusCode: o.StatusCode}
}

// Err is Failure as an error value.
func (o Outcome) Err() error {
	if o.Success() {
		return nil
	}
	return o.Failure()
}

// Error is a classified lifecycle failure.
type Error struct {
	Op         api.Op `json:"op"`
	Kind       Kind   `json:"kind"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind.sentinel(), e.Message)
}

// Unwrap lets errors.Is match the kind's sentinel.
func (e *Error) Unwrap() error { return e.Kind.sentinel() }

// Annotates reports whether the failure should mark the session as errored.
// Rate limiting and auth rejections leave the session state untouched.
func (e *Error) Annotates() bool {
	if e == nil {
		return false
	}
	return e.Kind != KindRateLimited && e.Kind != KindUnauthenticated
}
