// Package session keeps per-client state of the dashboard: list screens,
// pending confirmations and queued notices. Sessions expire after a period
// of inactivity.
package session

import (
	"sync"
	"time"

	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/metrics"
	"github.com/bassista/go_backoffice/internal/notify"
	"github.com/google/uuid"
)

const DefaultIdleTTL = 30 * time.Minute

// Session is the state of one client.
type Session struct {
	ID    string
	Inbox *notify.Inbox

	mu       sync.Mutex
	values   map[string]any
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Value returns the value stored under key, creating it on first use.
// A value of another type under the same key is replaced.
func Value[T any](s *Session, key string, create func() T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key].(T); ok {
		return v
	}
	v := create()
	s.values[key] = v
	return v
}

// Forget drops the value stored under key.
func (s *Session) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Store holds the live sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Store{sessions: map[string]*Session{}, ttl: ttl, now: now}
}

// Get returns a live session and marks it as used.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	now := st.now()
	if now.Sub(s.LastSeen()) > st.ttl {
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Acquire returns the session for id, or a new one when id is empty, not a
// uuid, unknown or expired. created reports whether a new session was made.
func (st *Store) Acquire(id string) (s *Session, created bool) {
	if _, err := uuid.Parse(id); err == nil {
		if s, ok := st.Get(id); ok {
			return s, false
		}
	}

	s = &Session{
		ID:       uuid.NewString(),
		Inbox:    notify.NewInbox(0),
		values:   map[string]any{},
		lastSeen: st.now(),
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.SetSessionsActive(n)
	logger.WithComponent("session").Debugf("created session %s", s.ID)
	return s, true
}

// Sweep removes sessions idle for longer than the ttl and returns how many were removed.
func (st *Store) Sweep() int {
	now := st.now()
	st.mu.Lock()
	removed := 0
	for id, s := range st.sessions {
		if now.Sub(s.LastSeen()) > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.SetSessionsActive(n)
	if removed > 0 {
		logger.WithComponent("session").Debugf("expired %d idle sessions", removed)
	}
	return removed
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
