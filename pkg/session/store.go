// Package session provides the server-side session abstraction used by the
// form-login and OAuth strategies.
//
// The Store interface is the only cross-request mutable state in the
// pipeline. TakeOnce gives the atomic get-and-invalidate needed for
// single-use values (OAuth state); everything else is plain keyed storage.
package session

import "context"

// Store is a keyed per-session value store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key for the session.
	Get(ctx context.Context, sessionID, key string) (string, bool, error)

	// Set stores a value under key for the session.
	Set(ctx context.Context, sessionID, key, value string) error

	// Delete removes the value under key for the session.
	Delete(ctx context.Context, sessionID, key string) error

	// TakeOnce atomically reads and removes the value under key.
	// Of N concurrent callers for the same key, exactly one observes the
	// value; the rest observe absence.
	TakeOnce(ctx context.Context, sessionID, key string) (string, bool, error)

	// Destroy removes the session and all its values.
	Destroy(ctx context.Context, sessionID string) error
}
