package fakeplatform

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *httptest.Server, *clock) {
	t.Helper()
	clk := &clock{t: time.Unix(1700000000, 0)}
	cfg := Config{
		Hostname:   "ctf.local",
		Expiration: 10 * time.Minute,
		Challenges: map[int]string{1: "web:latest", 2: "missing:latest"},
		Images:     []string{"web:latest", "alpine:3"},
		Sessions:   map[string]int{"cookie": 5},
		CSRF:       "nonce",
		Clock:      clk.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := New(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, clk
}

func post(t *testing.T, ts *httptest.Server, op string, body any, cookie, csrf string) (int, map[string]any) {
	t.Helper()
	buf, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/containers/api/"+op, bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if csrf != "" {
		req.Header.Set("CSRF-Token", csrf)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: cookie})
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func chal(id int) map[string]int { return map[string]int{"chal_id": id} }

func TestRequestCreatesThenReattaches(t *testing.T) {
	_, ts, _ := newTestServer(t, nil)

	status, body := post(t, ts, "request", chal(1), "cookie", "nonce")
	if status != http.StatusOK || body["status"] != "created" {
		t.Fatalf("first request = %d %v", status, body)
	}
	if body["port"] != "30000" {
		t.Errorf("port = %v, want string 30000", body["port"])
	}
	if body["expires"] != float64(1700000000+600) {
		t.Errorf("expires = %v", body["expires"])
	}

	status, body = post(t, ts, "request", chal(1), "cookie", "nonce")
	if status != http.StatusOK || body["status"] != "already_running" {
		t.Fatalf("second request = %d %v", status, body)
	}
	if body["port"] != float64(30000) {
		t.Errorf("already running port = %v, want 30000", body["port"])
	}
}

func TestRequestErrors(t *testing.T) {
	_, ts, _ := newTestServer(t, nil)

	tests := []struct {
		name       string
		body       any
		cookie     string
		csrf       string
		wantStatus int
		wantField  string
		wantText   string
	}{
		{"no session", chal(1), "", "nonce", 403, "message", "You must be logged in"},
		{"bad csrf", chal(1), "cookie", "wrong", 403, "message", "CSRF token invalid"},
		{"no chal id", map[string]int{}, "cookie", "nonce", 400, "error", "No chal_id specified"},
		{"unknown challenge", chal(99), "cookie", "nonce", 400, "error", "Challenge not found"},
		{"image not pulled", chal(2), "cookie", "nonce", 200, "error", "no image missing:latest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, ts, "request", tt.body, tt.cookie, tt.csrf)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body[tt.wantField] != tt.wantText {
				t.Errorf("%s = %v, want %q", tt.wantField, body[tt.wantField], tt.wantText)
			}
		})
	}
}

func TestRenewResetStop(t *testing.T) {
	srv, ts, clk := newTestServer(t, nil)

	if _, body := post(t, ts, "renew", chal(1), "cookie", "nonce"); body["error"] != "Container not found, try resetting the container." {
		t.Errorf("renew without container = %v", body)
	}

	post(t, ts, "request", chal(1), "cookie", "nonce")
	clk.Advance(5 * time.Minute)
	_, body := post(t, ts, "renew", chal(1), "cookie", "nonce")
	if body["expires"] != float64(1700000000+300+600) {
		t.Errorf("renew = %v", body)
	}
	if _, has := body["hostname"]; has {
		t.Error("renew should not report a hostname")
	}

	_, body = post(t, ts, "reset", chal(1), "cookie", "nonce")
	if body["port"] != "30001" {
		t.Errorf("reset port = %v, want fresh port", body["port"])
	}

	status, body := post(t, ts, "stop", chal(1), "cookie", "nonce")
	if status != http.StatusOK || body["success"] != "Container killed" {
		t.Errorf("stop = %d %v", status, body)
	}
	if _, ok := srv.Running(5, 1); ok {
		t.Error("container still running after stop")
	}

	status, body = post(t, ts, "stop", chal(1), "cookie", "nonce")
	if status != http.StatusBadRequest || body["error"] != "No container found" {
		t.Errorf("second stop = %d %v", status, body)
	}
}

func TestExpiredContainersAreReaped(t *testing.T) {
	srv, ts, clk := newTestServer(t, nil)
	post(t, ts, "request", chal(1), "cookie", "nonce")
	clk.Advance(11 * time.Minute)
	if _, ok := srv.Running(5, 1); ok {
		t.Error("expired container still reported running")
	}
}

func TestPausedIsForbidden(t *testing.T) {
	srv, ts, _ := newTestServer(t, nil)
	srv.SetPaused(true)
	status, body := post(t, ts, "request", chal(1), "cookie", "nonce")
	if status != http.StatusForbidden || body["message"] != "The CTF is paused" {
		t.Errorf("paused request = %d %v", status, body)
	}
}

func TestRateLimit(t *testing.T) {
	_, ts, _ := newTestServer(t, func(c *Config) { c.RateLimit = true })
	for i := 0; i < requestLimit; i++ {
		if status, _ := post(t, ts, "request", chal(1), "cookie", "nonce"); status != http.StatusOK {
			t.Fatalf("request %d = %d", i, status)
		}
	}
	if status, _ := post(t, ts, "request", chal(1), "cookie", "nonce"); status != http.StatusTooManyRequests {
		t.Errorf("request over limit = %d, want 429", status)
	}
	if status, _ := post(t, ts, "stop", chal(1), "cookie", "nonce"); status != http.StatusOK {
		t.Errorf("stop has its own limit, got %d", status)
	}
}

func TestImages(t *testing.T) {
	_, ts, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/containers/api/images")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Images []string `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Images) != 2 || body.Images[0] != "alpine:3" {
		t.Errorf("images = %v, want sorted list", body.Images)
	}
}
