// Package fakeplatform is an in-memory stand-in for the platform's
// containers plugin. It speaks the same HTTP contract and is used by tests
// and by `boxctl dev-server`.
package fakeplatform

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	requestLimit = 6
	stopLimit    = 10
	limitWindow  = time.Minute
	firstPort    = 30000
)

// Config describes the fake platform.
type Config struct {
	// Hostname is reported to clients as the sandbox host.
	Hostname string
	// Expiration is how long a sandbox lives before renew is needed.
	Expiration time.Duration
	// Challenges maps challenge id to the image it runs.
	Challenges map[int]string
	// Images are the images the fake "docker" has pulled.
	Images []string
	// Sessions maps a session cookie to a team id.
	Sessions map[string]int
	// CSRF is the nonce every POST must carry. Empty disables the check.
	CSRF string
	// RateLimit enables the plugin's per-route limits.
	RateLimit bool
	Clock     func() time.Time
	Logger    *log.Logger
}

type key struct {
	team      int
	challenge int
}

type container struct {
	id      string
	port    int
	expires int64
}

// Server is the fake plugin. Its zero value is not usable; call New.
type Server struct {
	cfg Config

	mu         sync.Mutex
	containers map[key]*container
	limiters   map[string]*rate.Limiter
	nextPort   int
	paused     bool
}

// New returns a server with cfg's defaults filled in.
func New(cfg Config) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = 45 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return &Server{
		cfg:        cfg,
		containers: make(map[key]*container),
		limiters:   make(map[string]*rate.Limiter),
		nextPort:   firstPort,
	}
}

// SetPaused makes every lifecycle call fail with 403, as when the CTF is paused.
func (s *Server) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// Running reports the port of the team's sandbox for a challenge, if any.
func (s *Server) Running(team, challenge int) (port int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(key{team, challenge})
	if c == nil {
		return 0, false
	}
	return c.port, true
}

// Handler returns the plugin routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/containers/api", func(r chi.Router) {
		r.Get("/images", s.handleImages)
		r.Group(func(r chi.Router) {
			r.Use(s.requireSession, s.requireCSRF)
			r.With(s.limit("request", requestLimit)).Post("/request", s.handleRequest)
			r.With(s.limit("renew", requestLimit)).Post("/renew", s.handleRenew)
			r.With(s.limit("reset", requestLimit)).Post("/reset", s.handleReset)
			r.With(s.limit("stop", stopLimit)).Post("/stop", s.handleStop)
		})
	})
	return r
}

type teamKey struct{}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		paused := s.paused
		s.mu.Unlock()
		if paused {
			writeJSON(w, http.StatusForbidden, map[string]any{"message": "The CTF is paused"})
			return
		}
		cookie, err := r.Cookie("session")
		team, ok := 0, false
		if err == nil {
			team, ok = s.cfg.Sessions[cookie.Value]
		}
		if !ok {
			writeJSON(w, http.StatusForbidden, map[string]any{"message": "You must be logged in"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withTeam(r.Context(), team)))
	})
}

func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.CSRF != "" && r.Header.Get("CSRF-Token") != s.cfg.CSRF {
			writeJSON(w, http.StatusForbidden, map[string]any{"message": "CSRF token invalid"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limit(route string, perWindow int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.cfg.RateLimit && !s.limiter(route, teamFrom(r.Context()), perWindow).Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "You are doing that too fast"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) limiter(route string, team, perWindow int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := route + "/" + itoa(team)
	l, ok := s.limiters[k]
	if !ok {
		l = rate.NewLimiter(rate.Every(limitWindow/time.Duration(perWindow)), perWindow)
		s.limiters[k] = l
	}
	return l
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	images := append([]string(nil), s.cfg.Images...)
	sort.Strings(images)
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	chalID, ok := decodeChallenge(w, r)
	if !ok {
		return
	}
	team := teamFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.live(key{team, chalID}); c != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "already_running",
			"hostname": s.cfg.Hostname,
			"port":     c.port,
			"expires":  c.expires,
		})
		return
	}
	s.create(w, team, chalID)
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	chalID, ok := decodeChallenge(w, r)
	if !ok {
		return
	}
	team := teamFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.cfg.Challenges[chalID]; !known {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Challenge not found"})
		return
	}
	c := s.live(key{team, chalID})
	if c == nil {
		writeJSON(w, http.StatusOK, map[string]any{"error": "Container not found, try resetting the container."})
		return
	}
	c.expires = s.expiry()
	writeJSON(w, http.StatusOK, map[string]any{"success": "Container renewed", "expires": c.expires})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	chalID, ok := decodeChallenge(w, r)
	if !ok {
		return
	}
	team := teamFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.containers, key{team, chalID})
	s.create(w, team, chalID)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	chalID, ok := decodeChallenge(w, r)
	if !ok {
		return
	}
	team := teamFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{team, chalID}
	if s.live(k) == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No container found"})
		return
	}
	delete(s.containers, k)
	writeJSON(w, http.StatusOK, map[string]any{"success": "Container killed"})
}

// create starts a sandbox. Caller holds s.mu.
func (s *Server) create(w http.ResponseWriter, team, chalID int) {
	image, known := s.cfg.Challenges[chalID]
	if !known {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Challenge not found"})
		return
	}
	if !s.hasImage(image) {
		writeJSON(w, http.StatusOK, map[string]any{"error": "no image " + image})
		return
	}

	c := &container{id: uuid.NewString(), port: s.nextPort, expires: s.expiry()}
	s.nextPort++
	s.containers[key{team, chalID}] = c
	s.cfg.Logger.Info("container created", "team", team, "challenge", chalID, "id", c.id, "port", c.port)

	// Docker reports fresh host ports as strings.
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "created",
		"hostname": s.cfg.Hostname,
		"port":     itoa(c.port),
		"expires":  c.expires,
	})
}

// live returns the team's unexpired sandbox, reaping an expired one.
// Caller holds s.mu.
func (s *Server) live(k key) *container {
	c, ok := s.containers[k]
	if !ok {
		return nil
	}
	if c.expires <= s.cfg.Clock().Unix() {
		delete(s.containers, k)
		return nil
	}
	return c
}

func (s *Server) expiry() int64 {
	return s.cfg.Clock().Add(s.cfg.Expiration).Unix()
}

func (s *Server) hasImage(image string) bool {
	for _, img := range s.cfg.Images {
		if img == image {
			return true
		}
	}
	return false
}

func decodeChallenge(w http.ResponseWriter, r *http.Request) (int, bool) {
	var body struct {
		ChallengeID *int `json:"chal_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request"})
		return 0, false
	}
	if body.ChallengeID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No chal_id specified"})
		return 0, false
	}
	return *body.ChallengeID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
