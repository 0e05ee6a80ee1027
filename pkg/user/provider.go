// Package user defines the user-record collaborators the pipeline resolves
// principals against.
package user

import "context"

// Record is a stored user account.
type Record struct {
	// Key is the opaque user key.
	Key string

	// Identifier is the login identifier, typically an email address.
	Identifier string

	// PasswordHash is the bcrypt hash of the account password, empty for
	// accounts that only log in through an external provider.
	PasswordHash string

	// Roles are the account's roles. An account with no roles can never
	// resolve to a principal.
	Roles []string

	// Provider and ProviderID link the account to an external OAuth
	// identity, when present.
	Provider   string
	ProviderID string
}

// Provider looks up user records. Lookups are an I/O boundary and honor
// the caller's context deadline; on timeout the pipeline fails closed.
//
// A (nil, nil) return means "no such account" — distinct from a lookup
// error.
type Provider interface {
	// FindByIdentifier looks up an account by login identifier.
	FindByIdentifier(ctx context.Context, identifier string) (*Record, error)

	// FindByKey looks up an account by its opaque key.
	FindByKey(ctx context.Context, key string) (*Record, error)

	// FindByProviderID looks up an account linked to an external
	// provider-scoped identity.
	FindByProviderID(ctx context.Context, provider, providerID string) (*Record, error)

	// Provision creates an account for a first-time external login and
	// returns the stored record. Implementations assign the Key.
	Provision(ctx context.Context, rec Record) (*Record, error)
}
