package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"waitlist/internal/waitlist/models"
	id "waitlist/pkg/domain"
	"waitlist/pkg/platform/sentinel"
)

// InMemory keeps sessions in process memory. It is the default backend for a
// single instance; expired sessions are dropped on access and by DeleteExpired.
type InMemory struct {
	mu       sync.Mutex
	sessions map[id.SessionID]*models.Session
	now      func() time.Time
}

type MemoryOption func(*InMemory)

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemory) {
		s.now = now
	}
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{
		sessions: make(map[id.SessionID]*models.Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.liveLocked(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// Update applies fn to a copy of the session and stores the copy only if fn
// succeeds. Updates of one session are serialized.
func (s *InMemory) Update(_ context.Context, sessionID id.SessionID, fn func(*models.Session) error) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.liveLocked(sessionID)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.sessions[sessionID] = next
	return next.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// DeleteExpired drops every session past its deadline and reports how many
// were removed.
func (s *InMemory) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemory) liveLocked(sessionID id.SessionID) (*models.Session, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if session.IsExpired(s.now()) {
		delete(s.sessions, sessionID)
		return nil, sentinel.ErrNotFound
	}
	return session, nil
}
