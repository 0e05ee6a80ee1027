// Package oauth implements the authorization-code exchange against an
// external provider, including PKCE and single-use state handling.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/palisadeproject/palisade/pkg/clock"
	"github.com/palisadeproject/palisade/pkg/session"
)

// DefaultStateLifetime bounds how long an authorization attempt may stay
// pending before its state is rejected.
const DefaultStateLifetime = 10 * time.Minute

// State is one pending authorization attempt: the random value sent to the
// provider, the PKCE code verifier held server-side, and the path to
// return to after login.
type State struct {
	Value     string    `json:"value"`
	Verifier  string    `json:"verifier,omitempty"`
	Target    string    `json:"target,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StateStore persists pending authorization state across the redirect
// round-trip. Consume is atomic and single-use: of N concurrent callers
// presenting the same state, exactly one succeeds, and the state is
// invalidated on first use regardless of outcome.
type StateStore interface {
	Save(ctx context.Context, sessionID string, st State) error
	Consume(ctx context.Context, sessionID, value string) (State, bool, error)
}

// SessionStateStore keeps pending state in the caller's session, relying
// on the session store's TakeOnce for atomic invalidation.
type SessionStateStore struct {
	sessions session.Store
	clk      clock.Clock
	lifetime time.Duration
}

// NewSessionStateStore creates a state store backed by the given session
// store. A zero lifetime defaults to DefaultStateLifetime.
func NewSessionStateStore(sessions session.Store, clk clock.Clock, lifetime time.Duration) *SessionStateStore {
	if clk == nil {
		clk = clock.Real()
	}
	if lifetime == 0 {
		lifetime = DefaultStateLifetime
	}
	return &SessionStateStore{sessions: sessions, clk: clk, lifetime: lifetime}
}

// Save implements StateStore. Saving overwrites any previous pending
// attempt for the session; only the most recent redirect can complete.
func (s *SessionStateStore) Save(ctx context.Context, sessionID string, st State) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.clk.Now()
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode oauth state: %w", err)
	}
	return s.sessions.Set(ctx, sessionID, session.KeyOAuthState, string(raw))
}

// Consume implements StateStore. The stored state is removed before the
// presented value is compared, so a mismatch still burns the attempt.
func (s *SessionStateStore) Consume(ctx context.Context, sessionID, value string) (State, bool, error) {
	raw, ok, err := s.sessions.TakeOnce(ctx, sessionID, session.KeyOAuthState)
	if err != nil || !ok {
		return State{}, false, err
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return State{}, false, nil
	}

	if s.clk.Since(st.CreatedAt) > s.lifetime {
		return State{}, false, nil
	}
	if subtle.ConstantTimeCompare([]byte(st.Value), []byte(value)) != 1 {
		return State{}, false, nil
	}
	return st, true, nil
}

// newStateValue returns a fresh unguessable state value.
func newStateValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
