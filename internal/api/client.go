// Package api talks to the platform's containers plugin over JSON/HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	csrfHeader      = "CSRF-Token"
	requestIDHeader = "X-Request-ID"
	sessionCookie   = "session"

	// maxBodyBytes caps how much of a reply is read; plugin replies are tiny.
	maxBodyBytes = 1 << 20
)

// Client issues lifecycle calls for one authenticated user. It never retries.
type Client struct {
	baseURL string
	session string
	csrf    string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSession attaches the platform session cookie to every call.
func WithSession(cookie string) Option {
	return func(c *Client) { c.session = strings.TrimSpace(cookie) }
}

// WithCSRF sets the anti-forgery nonce sent on every mutating call.
func WithCSRF(nonce string) Option {
	return func(c *Client) { c.csrf = strings.TrimSpace(nonce) }
}

// WithLogger sets the logger used for per-call debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client rooted at the platform base URL. No client-level
// timeout is set: callers bound each call with a context deadline.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Request(ctx context.Context, challengeID int) (*RawResponse, error) {
	return c.lifecycle(ctx, OpRequest, challengeID)
}

func (c *Client) Renew(ctx context.Context, challengeID int) (*RawResponse, error) {
	return c.lifecycle(ctx, OpRenew, challengeID)
}

func (c *Client) Reset(ctx context.Context, challengeID int) (*RawResponse, error) {
	return c.lifecycle(ctx, OpReset, challengeID)
}

func (c *Client) Stop(ctx context.Context, challengeID int) (*RawResponse, error) {
	return c.lifecycle(ctx, OpStop, challengeID)
}

// Do dispatches op by name.
func (c *Client) Do(ctx context.Context, op Op, challengeID int) (*RawResponse, error) {
	switch op {
	case OpRequest, OpRenew, OpReset, OpStop:
		return c.lifecycle(ctx, op, challengeID)
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

// Images lists the image tags available to container challenges.
func (c *Client) Images(ctx context.Context) ([]string, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/containers/api/images", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer resp.Body.Close()

	var out imagesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		}
		return nil, fmt.Errorf("decoding images: %w", err)
	}
	if out.Error != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: *out.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	return out.Images, nil
}

func (c *Client) lifecycle(ctx context.Context, op Op, challengeID int) (*RawResponse, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	buf, err := json.Marshal(lifecycleRequest{ChallengeID: challengeID})
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req, err := c.newRequest(ctx, http.MethodPost, op.path(), bytes.NewReader(buf))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	requestID := req.Header.Get(requestIDHeader)
	logger := c.logger.With("op", op, "challenge", challengeID, "request_id", requestID)
	logger.Debug("sending")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug("round trip failed", "error", err)
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw := &RawResponse{Op: op, StatusCode: resp.StatusCode, RequestID: requestID}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	logger.Debug("received", "status", resp.StatusCode, "bytes", len(body))

	if err := decodePayload(body, &raw.Body); err != nil {
		// A status code that classifies on its own does not need a body.
		if !isSuccess(resp.StatusCode) {
			return raw, nil
		}
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding body: %w", err)}
	}
	return raw, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && c.csrf != "" {
		req.Header.Set(csrfHeader, c.csrf)
	}
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.session})
	}
	return req, nil
}

func decodePayload(body []byte, out *Payload) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if body[0] != '{' {
		return errors.New("body is not a JSON object")
	}
	return json.Unmarshal(body, out)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
