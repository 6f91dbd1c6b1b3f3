// internal/store/memory.go
//
// In-memory registry of live quiz sessions.
//
// Characteristics:
//   - Holds *session.Controller values keyed by a random UUID.
//   - Concurrency-safe via RWMutex (concurrent lookups, exclusive writes).
//   - State is lost when the process restarts; only the leaderboard is durable.
//   - Deleting a session closes its controller so its clock stops.
//   - Each session carries an expiry; Reap closes and drops the expired ones.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/motsrares/internal/session"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = errors.New("session not found")

// Factory builds a controller for a freshly allocated session ID.
type Factory func(id string) *session.Controller

type entry struct {
	c       *session.Controller
	expires time.Time
}

// Sessions is the registry used by the HTTP layer.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]entry
	factory  Factory
}

// NewSessions constructs an empty registry.
func NewSessions(factory Factory) *Sessions {
	return &Sessions{
		sessions: make(map[string]entry),
		factory:  factory,
	}
}

// Create allocates an ID and registers a new controller under it.
// A zero expires keeps the session until it is deleted.
func (s *Sessions) Create(_ context.Context, expires time.Time) *session.Controller {
	id := uuid.NewString()
	c := s.factory(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = entry{c: c, expires: expires}
	return c
}

// Get looks up a session by ID.
func (s *Sessions) Get(_ context.Context, id string) (*session.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[id]; ok {
		return e.c, nil
	}
	return nil, ErrNotFound
}

// Delete closes and forgets a session.
func (s *Sessions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.c.Close()
	return nil
}

// Reap closes and drops every session whose expiry is not after now.
// It returns how many were removed.
func (s *Sessions) Reap(now time.Time) int {
	var expired []*session.Controller
	s.mu.Lock()
	for id, e := range s.sessions {
		if !e.expires.IsZero() && !e.expires.After(now) {
			expired = append(expired, e.c)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
	return len(expired)
}

// RunReaper calls Reap every interval until ctx is done.
func (s *Sessions) RunReaper(ctx context.Context, interval time.Duration, now func() time.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Reap(now()); n > 0 {
				log.Debug().Int("reaped", n).Int("live", s.Len()).Msg("expired sessions closed")
			}
		}
	}
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CloseAll closes every session. Used at shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]entry)
	s.mu.Unlock()
	for _, e := range all {
		e.c.Close()
	}
}
