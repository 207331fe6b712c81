// Package session tracks agent conversations in memory.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"veron/internal/models"
)

const DefaultIdleTimeout = time.Hour

// Store keeps sessions keyed by id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	idle     time.Duration
	now      func() time.Time
}

// NewStore returns a store that treats sessions idle longer than idle as expired.
func NewStore(idle time.Duration) *Store {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Store{
		sessions: make(map[string]*models.Session),
		idle:     idle,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Create starts a new session with a random id.
func (s *Store) Create() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := &models.Session{ID: uuid.NewString(), CreatedAt: now, LastUsed: now}
	s.sessions[sess.ID] = sess
	return *sess
}

// Touch records one message on the session, creating it when id is unknown.
// An empty id creates a fresh session.
func (s *Store) Touch(id string) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := s.sessions[id]
	if !ok {
		sess = &models.Session{ID: id, CreatedAt: now}
		s.sessions[id] = sess
	}
	sess.LastUsed = now
	sess.MessageCount++
	return *sess
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return models.Session{}, false
	}
	return *sess, true
}

// ListActive returns sessions used within the idle timeout, most recent first.
func (s *Store) ListActive() []models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	out := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if now.Sub(sess.LastUsed) < s.idle {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsed.After(out[j].LastUsed) })
	return out
}

// Cleanup drops expired sessions and returns how many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastUsed) > s.idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
