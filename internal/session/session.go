// Package session implements the in-memory per-conversation session store.
//
// Sessions are created lazily on first contact, mutated in place by the phase
// handlers, and evicted by a periodic sweep once inactive. The store also
// provides per-conversation locking so message handling for one customer is
// serialized while different customers proceed concurrently.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mundohelados/orderbot/internal/models"
)

// Manager guards the conversation-identifier to session mapping.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewManager creates an empty session store.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*models.Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// newSession returns a fresh default session. Order.Items is non-nil from
// birth; handlers rely on that invariant.
func newSession(now time.Time) *models.Session {
	return &models.Session{
		Phase:        models.PhaseOptionSelect,
		Order:        models.Order{Items: []models.CartItem{}},
		AIEnabled:    true,
		LastPromptAt: now,
		CreatedAt:    now,
	}
}

// GetOrCreate returns the session for the conversation, creating a default
// one if none exists yet.
func (m *Manager) GetOrCreate(convID string) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[convID]
	if !ok {
		s = newSession(time.Now())
		m.sessions[convID] = s
		slog.Debug("Session created", "conversation", convID)
	}
	if s.Order.Items == nil {
		s.Order.Items = []models.CartItem{}
	}
	return s
}

// Get returns the session for the conversation, or nil.
func (m *Manager) Get(convID string) *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[convID]
}

// Reset replaces the conversation's session with a fresh default record and
// returns it. The identifier keeps pointing at a live session afterwards.
func (m *Manager) Reset(convID string) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := newSession(time.Now())
	m.sessions[convID] = s
	slog.Debug("Session reset", "conversation", convID)
	return s
}

// Delete removes the conversation's session entirely.
func (m *Manager) Delete(convID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, convID)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepInactive evicts sessions whose last activity is older than threshold
// and returns how many were removed.
func (m *Manager) SweepInactive(threshold time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastPromptAt) > threshold {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Session sweep evicted inactive sessions", "count", removed, "remaining", len(m.sessions))
	}
	return removed
}

// Lock acquires the per-conversation mutex. Handlers for the same customer
// run strictly one at a time; this replaces ad-hoc "processing" flags and
// cannot leak a held state on panic as long as callers pair it with a
// deferred Unlock.
func (m *Manager) Lock(convID string) {
	m.lockFor(convID).Lock()
}

// Unlock releases the per-conversation mutex.
func (m *Manager) Unlock(convID string) {
	m.lockFor(convID).Unlock()
}

func (m *Manager) lockFor(convID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.locks[convID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[convID] = l
	}
	return l
}
