package session

import (
	"context"
	"sync"
	"time"

	"github.com/palisadeproject/palisade/pkg/clock"
)

// MemoryStore is an in-memory Store with per-session expiry.
// Suitable for single-process deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionData
	clk      clock.Clock
	lifetime time.Duration
}

type sessionData struct {
	values   map[string]string
	deadline time.Time
}

// NewMemoryStore creates an in-memory store. Sessions expire lifetime
// after their last write; a zero lifetime means sessions never expire.
func NewMemoryStore(clk clock.Clock, lifetime time.Duration) *MemoryStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{
		sessions: make(map[string]*sessionData),
		clk:      clk,
		lifetime: lifetime,
	}
}

// live returns the session if it exists and has not expired.
// Expired sessions are dropped on access. Caller holds s.mu.
func (s *MemoryStore) live(sessionID string) (*sessionData, bool) {
	data, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if !data.deadline.IsZero() && !s.clk.Now().Before(data.deadline) {
		delete(s.sessions, sessionID)
		return nil, false
	}
	return data, true
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.live(sessionID)
	if !ok {
		return "", false, nil
	}
	v, ok := data.values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.live(sessionID)
	if !ok {
		data = &sessionData{values: make(map[string]string)}
		s.sessions[sessionID] = data
	}
	data.values[key] = value
	if s.lifetime > 0 {
		data.deadline = s.clk.Now().Add(s.lifetime)
	}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.live(sessionID); ok {
		delete(data.values, key)
	}
	return nil
}

// TakeOnce implements Store. The read and the invalidation happen under
// one lock acquisition, so concurrent duplicate callers race and exactly
// one wins.
func (s *MemoryStore) TakeOnce(_ context.Context, sessionID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.live(sessionID)
	if !ok {
		return "", false, nil
	}
	v, ok := data.values[key]
	if !ok {
		return "", false, nil
	}
	delete(data.values, key)
	return v, true, nil
}

// Destroy implements Store.
func (s *MemoryStore) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}
