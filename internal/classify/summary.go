package classify

import (
	"fmt"

	"github.com/zpdzap/boxctl/internal/api"
)

// StoppedMessage is shown after a successful stop.
const StoppedMessage = "Container stopped. Reopen this challenge to start another."

// Summary is a one-line, user-facing description of the outcome.
func (o Outcome) Summary() string {
	switch o.Kind {
	case KindSuccess:
		return o.successSummary()
	case KindRateLimited:
		return fmt.Sprintf("%s rate limited: the platform may or may not have acted. "+
			"Wait a minute before retrying; a repeated request reattaches to a running sandbox.", o.Op)
	case KindUnauthenticated:
		if o.Message != "" {
			return fmt.Sprintf("%s rejected: %s (log in again or wait for the competition to resume)", o.Op, o.Message)
		}
		return fmt.Sprintf("%s rejected: not logged in or competition paused", o.Op)
	case KindTimeout:
		return fmt.Sprintf("%s timed out: %s", o.Op, o.Message)
	}
	if o.Message == "" {
		return fmt.Sprintf("%s failed: %v", o.Op, o.Kind.sentinel())
	}
	return fmt.Sprintf("%s failed: %s", o.Op, o.Message)
}

func (o Outcome) successSummary() string {
	switch o.Op {
	case api.OpRequest:
		if o.Reattached {
			return fmt.Sprintf("Reattached to running sandbox at %s", o.Endpoint)
		}
		return fmt.Sprintf("Sandbox ready at %s", o.Endpoint)
	case api.OpReset:
		return fmt.Sprintf("Sandbox reset, now at %s", o.Endpoint)
	case api.OpRenew:
		return fmt.Sprintf("Sandbox renewed until %s", o.ExpiresAt.Local().Format("15:04"))
	case api.OpStop:
		return StoppedMessage
	}
	return string(o.Op) + " ok"
}
