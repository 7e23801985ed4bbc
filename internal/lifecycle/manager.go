package lifecycle

import (
	"sort"
	"sync"

	"github.com/zpdzap/boxctl/internal/session"
)

// Manager holds one controller per challenge.
type Manager struct {
	mu          sync.Mutex
	opts        Options
	controllers map[int]*Controller
}

// NewManager creates a manager whose controllers share opts. Sessions in
// cached are adopted as-is; others are created on first Open.
func NewManager(opts Options, cached map[int]*session.Session) *Manager {
	m := &Manager{
		opts:        opts.withDefaults(),
		controllers: make(map[int]*Controller),
	}
	for id, s := range cached {
		if s == nil {
			continue
		}
		s.ChallengeID = id
		m.controllers[id] = NewController(s, m.opts)
	}
	return m
}

// Open returns the controller for challengeID, creating a fresh session if
// none exists. A cached session picks up name when it has none.
func (m *Manager) Open(challengeID int, name string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.controllers[challengeID]; ok {
		c.mu.Lock()
		if c.sess.Name == "" {
			c.sess.Name = name
		}
		c.mu.Unlock()
		return c
	}
	c := NewController(session.New(challengeID, name), m.opts)
	m.controllers[challengeID] = c
	return c
}

// Get returns the controller for challengeID.
func (m *Manager) Get(challengeID int) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[challengeID]
	return c, ok
}

// List returns all controllers sorted by challenge id.
func (m *Manager) List() []*Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChallengeID() < result[j].ChallengeID()
	})
	return result
}
