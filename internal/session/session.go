package session

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zpdzap/boxctl/internal/classify"
)

// State represents where a challenge's sandbox is in its lifecycle.
type State string

const (
	StateNotRequested State = "not_requested"
	StateRequesting   State = "requesting"
	StateActive       State = "active"
	StateMutating     State = "mutating"
	StateStopped      State = "stopped"
	StateErrored      State = "errored"
)

// Transient reports whether a call is in flight in this state.
func (s State) Transient() bool {
	return s == StateRequesting || s == StateMutating
}

// Session is the client's cached projection of one challenge's sandbox.
// Endpoint and ExpiresAt are set and cleared together.
type Session struct {
	ChallengeID int                `json:"challenge_id"`
	Name        string             `json:"name,omitempty"`
	State       State              `json:"state"`
	Endpoint    *classify.Endpoint `json:"endpoint,omitempty"`
	ExpiresAt   time.Time          `json:"expires_at"`
	LastError   *classify.Error    `json:"last_error,omitempty"`
	// Ambiguous is set after a rate-limited reply whose effect is unknown.
	Ambiguous bool      `json:"ambiguous,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a session that has never been requested.
func New(challengeID int, name string) *Session {
	return &Session{ChallengeID: challengeID, Name: name, State: StateNotRequested}
}

// Begin moves the session into the in-flight state for a call.
func (s *Session) Begin(next State, now time.Time) {
	s.State = next
	s.UpdatedAt = now
}

// Activate records a live sandbox. Used by request and reset.
func (s *Session) Activate(ep classify.Endpoint, expiresAt time.Time, now time.Time) {
	s.State = StateActive
	s.Endpoint = &ep
	s.ExpiresAt = expiresAt
	s.clearFailure(now)
}

// Extend refreshes the expiry of a live sandbox, keeping its endpoint.
func (s *Session) Extend(expiresAt time.Time, now time.Time) error {
	if s.Endpoint == nil {
		return errors.New("cannot extend a session without an endpoint")
	}
	s.State = StateActive
	s.ExpiresAt = expiresAt
	s.clearFailure(now)
	return nil
}

// Stop marks the sandbox as stopped and forgets its connection details.
func (s *Session) Stop(now time.Time) {
	s.State = StateStopped
	s.clear()
	s.clearFailure(now)
}

// Drop returns the session to not_requested after the platform reported
// that the sandbox is gone.
func (s *Session) Drop(failure *classify.Error, now time.Time) {
	s.State = StateNotRequested
	s.clear()
	s.LastError = failure
	s.Ambiguous = false
	s.UpdatedAt = now
}

// Fail reverts to the stable state held before the call and records the
// failure. Endpoint and expiry are left untouched.
func (s *Session) Fail(stable State, failure *classify.Error, now time.Time) {
	s.State = stable
	s.LastError = failure
	s.Ambiguous = failure != nil && failure.Kind == classify.KindRateLimited
	s.UpdatedAt = now
}

// Display returns the state to show: errored when the last call failed in a
// way that annotates the session, otherwise the lifecycle state.
func (s *Session) Display() State {
	if !s.State.Transient() && s.LastError.Annotates() {
		return StateErrored
	}
	return s.State
}

// RemainingMinutes is ceil((ExpiresAt - now) / 1m). It is always derived
// from the server-issued expiry. ok is false when no expiry is known.
func (s *Session) RemainingMinutes(now time.Time) (minutes int, ok bool) {
	if s.ExpiresAt.IsZero() {
		return 0, false
	}
	return int(math.Ceil(s.ExpiresAt.Sub(now).Minutes())), true
}

// Expired reports whether a known expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Snapshot returns a copy that shares no pointers with s.
func (s *Session) Snapshot() Session {
	c := *s
	if s.Endpoint != nil {
		ep := *s.Endpoint
		c.Endpoint = &ep
	}
	if s.LastError != nil {
		le := *s.LastError
		c.LastError = &le
	}
	return c
}

// Check reports an endpoint without an expiry, or one held in the wrong state.
func (s *Session) Check() error {
	if (s.Endpoint == nil) != s.ExpiresAt.IsZero() {
		return fmt.Errorf("challenge %d: endpoint and expiry must be set together", s.ChallengeID)
	}
	if s.Endpoint != nil && s.State != StateActive && s.State != StateMutating {
		return fmt.Errorf("challenge %d: endpoint present in state %s", s.ChallengeID, s.State)
	}
	return nil
}

func (s *Session) clear() {
	s.Endpoint = nil
	s.ExpiresAt = time.Time{}
}

func (s *Session) clearFailure(now time.Time) {
	s.LastError = nil
	s.Ambiguous = false
	s.UpdatedAt = now
}
