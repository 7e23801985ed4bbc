package classify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zpdzap/boxctl/internal/api"
)

// goneMarkers are the plugin's texts for a sandbox that no longer exists.
var goneMarkers = []string{
	"container not found",
	"no container found",
}

// Classify maps a raw reply to exactly one Outcome. Status codes are checked
// first (429, then 403), then the body: error, message, other non-2xx
// statuses, and finally the success fields the op requires.
func Classify(op api.Op, raw *api.RawResponse) Outcome {
	if raw == nil {
		return Outcome{Op: op, Kind: KindMalformed, Message: "empty response"}
	}
	o := Outcome{Op: op, StatusCode: raw.StatusCode, RequestID: raw.RequestID}
	body := raw.Body

	switch {
	case raw.StatusCode == http.StatusTooManyRequests:
		o.Kind = KindRateLimited
		o.Message = serverText(body, "too many requests; the action may still have been applied")
		return o
	case raw.StatusCode == http.StatusForbidden:
		o.Kind = KindUnauthenticated
		o.Message = serverText(body, "not logged in or the competition is paused")
		return o
	case body.Error != nil:
		o.Kind = KindContainerError
		o.Message = *body.Error
		o.Gone = op != api.OpRequest && isGone(*body.Error)
		return o
	case body.Message != nil:
		o.Kind = KindPlatformError
		o.Message = *body.Message
		return o
	case raw.StatusCode < 200 || raw.StatusCode >= 300:
		o.Kind = KindPlatformError
		o.Message = statusText(raw.StatusCode)
		return o
	}

	if body.Status != nil && strings.EqualFold(*body.Status, "error") {
		o.Kind = KindMalformed
		o.Message = "server reported an error without details"
		return o
	}
	return success(op, body, o)
}

func success(op api.Op, body api.Payload, o Outcome) Outcome {
	var missing []string
	switch op {
	case api.OpRequest, api.OpReset:
		if body.Hostname == nil || strings.TrimSpace(*body.Hostname) == "" {
			missing = append(missing, "hostname")
		}
		if body.Port == nil {
			missing = append(missing, "port")
		}
		if body.Expires == nil {
			missing = append(missing, "expires")
		}
	case api.OpRenew:
		if body.Expires == nil {
			missing = append(missing, "expires")
		}
	case api.OpStop:
	default:
		o.Kind = KindMalformed
		o.Message = fmt.Sprintf("unknown operation %q", op)
		return o
	}
	if len(missing) > 0 {
		o.Kind = KindMalformed
		o.Message = "response missing " + strings.Join(missing, ", ")
		return o
	}

	if op == api.OpRequest || op == api.OpReset {
		port := int(*body.Port)
		if port <= 0 || port > 65535 {
			o.Kind = KindMalformed
			o.Message = fmt.Sprintf("response has invalid port %d", port)
			return o
		}
		o.Endpoint = &Endpoint{Host: strings.TrimSpace(*body.Hostname), Port: port}
	}
	if body.Expires != nil {
		o.ExpiresAt = time.Unix(int64(*body.Expires), 0)
	}
	o.Reattached = body.Status != nil && *body.Status == "already_running"
	o.Kind = KindSuccess
	if body.Success != nil {
		o.Message = *body.Success
	}
	return o
}

// FromError classifies a call that never produced a reply.
func FromError(op api.Op, err error) Outcome {
	o := Outcome{Op: op, Message: errText(err)}
	var te *api.TransportError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		o.Kind = KindTimeout
		o.Message = "no response before the deadline"
	case errors.As(err, &te):
		o.Kind = KindTransportFailure
		o.StatusCode = te.StatusCode
	default:
		o.Kind = KindTransportFailure
	}
	return o
}

// Result classifies whichever of raw or err a client call returned.
func Result(op api.Op, raw *api.RawResponse, err error) Outcome {
	if err != nil {
		return FromError(op, err)
	}
	return Classify(op, raw)
}

func serverText(body api.Payload, fallback string) string {
	if body.Error != nil {
		return *body.Error
	}
	if body.Message != nil {
		return *body.Message
	}
	return fallback
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}
	return fmt.Sprintf("status %d", code)
}

func isGone(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range goneMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
