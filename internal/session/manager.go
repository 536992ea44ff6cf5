package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/insightgenie/internal/log"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = time.Hour

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

type entry struct {
	mu       sync.Mutex
	s        *Session
	lastUsed time.Time
}

// Manager owns sessions keyed by uuid. Calls on one session serialize.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	bins     int
	now      func() time.Time
}

// NewManager creates a manager. A non-positive ttl means DefaultTTL.
func NewManager(ttl time.Duration, bins int) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{sessions: make(map[string]*entry), ttl: ttl, bins: bins, now: time.Now}
}

// Create registers a new empty session and returns its ID.
func (m *Manager) Create() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = &entry{s: New(id, m.bins), lastUsed: m.now()}
	m.mu.Unlock()
	return id
}

// Do runs fn with exclusive access to the session.
func (m *Manager) Do(id string, fn func(*Session) error) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		e.lastUsed = m.now()
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.s)
}

// Delete forgets a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions idle longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.ttl / 4
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if n := m.Sweep(); n > 0 {
				log.Debug("expired sessions", zap.Int("count", n), zap.Int("live", m.Len()))
			}
		}
	}
}
