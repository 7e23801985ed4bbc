package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// cache is the on-disk layout of the session cache.
type cache struct {
	Sessions map[int]*Session `json:"sessions"`
}

// Store persists session snapshots to a JSON file so the last known
// endpoints survive between runs.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a store backed by path. The file is created on first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (st *Store) Path() string { return st.path }

// Load reads every cached session, normalized for now: in-flight states fall
// back to their stable state, stopped challenges are reopened and expired
// sandboxes are forgotten.
func (st *Store) Load(now time.Time) (map[int]*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	c, err := st.read()
	if err != nil {
		return nil, err
	}
	for id, s := range c.Sessions {
		if s == nil {
			delete(c.Sessions, id)
			continue
		}
		s.ChallengeID = id
		normalize(s, now)
	}
	return c.Sessions, nil
}

// Save writes one session into the cache, keeping the others.
func (st *Store) Save(s Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	c, err := st.read()
	if err != nil {
		c = &cache{Sessions: make(map[int]*Session)}
	}
	c.Sessions[s.ChallengeID] = &s
	return st.write(c)
}

// List returns cached sessions sorted by challenge id.
func (st *Store) List(now time.Time) ([]Session, error) {
	sessions, err := st.Load(now)
	if err != nil {
		return nil, err
	}
	result := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChallengeID < result[j].ChallengeID
	})
	return result, nil
}

func (st *Store) read() (*cache, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cache{Sessions: make(map[int]*Session)}, nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var c cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if c.Sessions == nil {
		c.Sessions = make(map[int]*Session)
	}
	return &c, nil
}

func (st *Store) write(c *cache) error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return os.Rename(tmp, st.path)
}

func normalize(s *Session, now time.Time) {
	switch s.State {
	case StateRequesting:
		s.State = StateNotRequested
	case StateMutating:
		s.State = StateActive
	case StateStopped:
		// A new run reopens the challenge.
		s.State = StateNotRequested
	case "", StateErrored:
		s.State = StateNotRequested
		if s.Endpoint != nil {
			s.State = StateActive
		}
	}
	if s.State == StateActive && (s.Endpoint == nil || s.Expired(now)) {
		s.State = StateNotRequested
		s.clear()
	}
	if s.State != StateActive {
		s.clear()
	}
}
