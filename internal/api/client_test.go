package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLifecycleSendsChallengeAndHeaders(t *testing.T) {
	var gotPath, gotCSRF, gotCookie, gotRequestID string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCSRF = r.Header.Get("CSRF-Token")
		gotRequestID = r.Header.Get("X-Request-ID")
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"status":"created","hostname":"h","port":"1337","expires":1700000000}`))
	}))
	defer server.Close()

	c := New(server.URL+"/", WithCSRF("nonce"), WithSession("cookie"))
	raw, err := c.Request(context.Background(), 42)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if gotPath != "/containers/api/request" {
		t.Errorf("path = %q", gotPath)
	}
	if gotCSRF != "nonce" {
		t.Errorf("CSRF-Token = %q, want nonce", gotCSRF)
	}
	if gotCookie != "cookie" {
		t.Errorf("session cookie = %q, want cookie", gotCookie)
	}
	if gotRequestID == "" || gotRequestID != raw.RequestID {
		t.Errorf("request id = %q, raw has %q", gotRequestID, raw.RequestID)
	}
	if id, _ := gotBody["chal_id"].(float64); id != 42 {
		t.Errorf("chal_id = %v, want 42", gotBody["chal_id"])
	}
	if raw.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", raw.StatusCode)
	}
	if raw.Body.Port == nil || *raw.Body.Port != 1337 {
		t.Errorf("port = %v, want 1337 from string", raw.Body.Port)
	}
	if raw.Body.Expires == nil || *raw.Body.Expires != 1700000000 {
		t.Errorf("expires = %v", raw.Body.Expires)
	}
	if raw.Body.Error != nil || raw.Body.Message != nil {
		t.Errorf("unexpected error/message fields: %+v", raw.Body)
	}
}

func TestOpsHitTheirRoutes(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.URL)
	ctx := context.Background()
	for _, op := range Ops {
		if _, err := c.Do(ctx, op, 1); err != nil {
			t.Fatalf("%s: %v", op, err)
		}
	}
	want := []string{"/containers/api/request", "/containers/api/renew", "/containers/api/reset", "/containers/api/stop"}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}

	if _, err := c.Do(ctx, Op("kill"), 1); err == nil {
		t.Error("unknown op should fail")
	}
}

func TestStatusOnlyRepliesAreNotTransportErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rate limited html", http.StatusTooManyRequests, "<html>slow down</html>"},
		{"forbidden empty", http.StatusForbidden, ""},
		{"server error text", http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			raw, err := New(server.URL).Renew(context.Background(), 1)
			if err != nil {
				t.Fatalf("Renew: %v", err)
			}
			if raw.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", raw.StatusCode, tt.status)
			}
		})
	}
}

func TestUnparseableSuccessIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer server.Close()

	_, err := New(server.URL).Reset(context.Background(), 1)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if te.Op != OpReset || te.StatusCode != http.StatusOK {
		t.Errorf("TransportError = %+v", te)
	}
}

func TestEmptySuccessBodyDecodesAsEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	raw, err := New(server.URL).Stop(context.Background(), 1)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if raw.Body != (Payload{}) {
		t.Errorf("Body = %+v, want empty", raw.Body)
	}
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url).Request(context.Background(), 1)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
}

func TestContextDeadlineSurfacesThroughTransportError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := New(server.URL).Renew(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded in chain", err)
	}
}

func TestImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/containers/api/images" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("CSRF-Token") != "" {
			t.Error("GET should not carry a CSRF token")
		}
		_, _ = w.Write([]byte(`{"images":["alpine:3","nginx:latest"]}`))
	}))
	defer server.Close()

	images, err := New(server.URL, WithCSRF("nonce")).Images(context.Background())
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if len(images) != 2 || images[0] != "alpine:3" {
		t.Errorf("images = %v", images)
	}
}

func TestImagesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Docker is not initialized. Please check your settings."}`))
	}))
	defer server.Close()

	_, err := New(server.URL).Images(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != "Docker is not initialized. Please check your settings." {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in      string
		want    FlexInt
		wantErr bool
	}{
		{`1337`, 1337, false},
		{`"8080"`, 8080, false},
		{`1700000000.0`, 1700000000, false},
		{`"abc"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f FlexInt
			err := json.Unmarshal([]byte(tt.in), &f)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && f != tt.want {
				t.Errorf("got %d, want %d", f, tt.want)
			}
		})
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, err := c.Request(context.Background(), 1); !errors.Is(err, ErrNilClient) {
		t.Errorf("err = %v, want ErrNilClient", err)
	}
}
