// Package lifecycle drives one sandbox per challenge through request, renew,
// reset and stop, keeping at most one call in flight per session.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zpdzap/boxctl/internal/api"
	"github.com/zpdzap/boxctl/internal/classify"
	"github.com/zpdzap/boxctl/internal/session"
)

var (
	ErrBusy            = errors.New("another action is in flight")
	ErrControlDisabled = errors.New("control is disabled")
	ErrPrecondition    = errors.New("action not allowed in current state")
	ErrUnknownAction   = errors.New("unknown action")
)

// DefaultTimeout bounds a call when Options.Timeout is unset.
const DefaultTimeout = 15 * time.Second

// Client performs one lifecycle round trip. *api.Client satisfies it.
type Client interface {
	Do(ctx context.Context, op api.Op, challengeID int) (*api.RawResponse, error)
}

// Sink receives session snapshots as actions start and finish.
type Sink interface {
	Dispatched(s session.Session, action api.Op)
	Applied(s session.Session, o classify.Outcome)
}

// Saver persists a session after every applied outcome.
type Saver interface {
	Save(s session.Session) error
}

type nopSink struct{}

func (nopSink) Dispatched(session.Session, api.Op) {}
func (nopSink) Applied(session.Session, classify.Outcome) {}

// Options configures controllers.
type Options struct {
	Client  Client
	Sink    Sink
	Saver   Saver
	Timeout time.Duration
	Clock   func() time.Time
	Logger  *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Sink == nil {
		o.Sink = nopSink{}
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Control is the user-facing trigger for one action.
type Control struct {
	Action  api.Op
	Enabled bool
	// Removed controls cannot come back until the session is dropped.
	Removed bool
}

// Available reports whether the control can be activated right now.
func (c Control) Available() bool { return c.Enabled && !c.Removed }

// Controller owns one session. It is safe for concurrent use; a second
// Dispatch while one is in flight returns ErrBusy.
type Controller struct {
	mu       sync.Mutex
	sess     *session.Session
	controls map[api.Op]*Control
	inFlight bool

	opts   Options
	logger *log.Logger
}

// NewController wraps sess. The controller is the only writer of sess from
// here on.
func NewController(sess *session.Session, opts Options) *Controller {
	opts = opts.withDefaults()
	c := &Controller{
		sess:     sess,
		controls: make(map[api.Op]*Control, len(api.Ops)),
		opts:     opts,
		logger:   opts.Logger.With("challenge", sess.ChallengeID),
	}
	for _, op := range api.Ops {
		c.controls[op] = &Control{Action: op}
	}
	c.syncControls()
	return c
}

// ChallengeID returns the id of the owning challenge.
func (c *Controller) ChallengeID() int { return c.sess.ChallengeID }

// Session returns a snapshot of the current session.
func (c *Controller) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Snapshot()
}

// Control returns the state of the control for action.
func (c *Controller) Control(action api.Op) Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctl, ok := c.controls[action]; ok {
		return *ctl
	}
	return Control{Action: action, Removed: true}
}

// Controls returns every control in display order.
func (c *Controller) Controls() []Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Control, 0, len(api.Ops))
	for _, op := range api.Ops {
		out = append(out, *c.controls[op])
	}
	return out
}

// InFlight reports whether an action is awaiting its reply.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Dispatch runs action against the platform and applies the classified
// outcome. The returned error is a guard error (ErrBusy, ErrControlDisabled,
// ErrPrecondition) when nothing was sent, or the outcome's *classify.Error.
func (c *Controller) Dispatch(ctx context.Context, action api.Op) (classify.Outcome, error) {
	stable, err := c.begin(action)
	if err != nil {
		return classify.Outcome{}, err
	}
	logger := c.logger.With("action", action)
	logger.Debug("dispatched")

	outcome := c.call(ctx, action)

	snap := c.finish(stable, outcome)
	if c.opts.Saver != nil {
		if err := c.opts.Saver.Save(snap); err != nil {
			logger.Warn("saving session", "error", err)
		}
	}

	switch {
	case outcome.Success():
		logger.Info("applied", "state", snap.State, "request_id", outcome.RequestID)
	case outcome.Kind == classify.KindRateLimited:
		logger.Warn("rate limited; server-side effect unknown", "request_id", outcome.RequestID)
	default:
		logger.Warn("failed", "kind", outcome.Kind, "message", outcome.Message, "request_id", outcome.RequestID)
	}
	c.opts.Sink.Applied(snap, outcome)
	return outcome, outcome.Err()
}

func (c *Controller) begin(action api.Op) (session.State, error) {
	c.mu.Lock()
	ctl, ok := c.controls[action]
	if !ok {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrBusy
	}
	stable := c.sess.State
	if want := precondition(action); stable != want {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s needs %s, session is %s", ErrPrecondition, action, want, stable)
	}
	if !ctl.Available() {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrControlDisabled, action)
	}

	c.inFlight = true
	ctl.Enabled = false
	c.sess.Begin(transient(action), c.opts.Clock())
	snap := c.sess.Snapshot()
	c.mu.Unlock()

	c.opts.Sink.Dispatched(snap, action)
	return stable, nil
}

type callResult struct {
	raw *api.RawResponse
	err error
}

// call resolves even if the client ignores its context.
func (c *Controller) call(ctx context.Context, action api.Op) classify.Outcome {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		raw, err := c.opts.Client.Do(callCtx, action, c.sess.ChallengeID)
		done <- callResult{raw: raw, err: err}
	}()

	select {
	case r := <-done:
		return classify.Result(action, r.raw, r.err)
	case <-callCtx.Done():
		return classify.FromError(action, callCtx.Err())
	}
}

func (c *Controller) finish(stable session.State, o classify.Outcome) session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apply(stable, o)
	c.inFlight = false
	c.syncControls()
	return c.sess.Snapshot()
}

func (c *Controller) apply(stable session.State, o classify.Outcome) {
	now := c.opts.Clock()
	if !o.Success() {
		if o.Gone {
			c.sess.Drop(o.Failure(), now)
			return
		}
		c.sess.Fail(stable, o.Failure(), now)
		return
	}

	switch o.Op {
	case api.OpRequest, api.OpReset:
		c.sess.Activate(*o.Endpoint, o.ExpiresAt, now)
	case api.OpRenew:
		if err := c.sess.Extend(o.ExpiresAt, now); err != nil {
			c.sess.Fail(stable, &classify.Error{Op: o.Op, Kind: classify.KindMalformed, Message: err.Error()}, now)
		}
	case api.OpStop:
		c.sess.Stop(now)
	}
}

// syncControls derives control availability from the stable state. While a
// call is in flight the triggering control stays disabled.
func (c *Controller) syncControls() {
	if c.inFlight {
		return
	}
	request := c.controls[api.OpRequest]
	mutators := []*Control{c.controls[api.OpRenew], c.controls[api.OpReset], c.controls[api.OpStop]}

	switch c.sess.State {
	case session.StateNotRequested:
		*request = Control{Action: api.OpRequest, Enabled: true}
		for _, m := range mutators {
			*m = Control{Action: m.Action}
		}
	case session.StateActive:
		*request = Control{Action: api.OpRequest, Removed: true}
		for _, m := range mutators {
			*m = Control{Action: m.Action, Enabled: true}
		}
	case session.StateStopped:
		for _, ctl := range c.controls {
			*ctl = Control{Action: ctl.Action, Removed: true}
		}
	}
}

func precondition(action api.Op) session.State {
	if action == api.OpRequest {
		return session.StateNotRequested
	}
	return session.StateActive
}

func transient(action api.Op) session.State {
	if action == api.OpRequest {
		return session.StateRequesting
	}
	return session.StateMutating
}
