// Package passport models the credentials of one in-flight authentication
// attempt.
//
// A Badge is a single typed fact presented toward authentication (a claimed
// identity, a plaintext password, a CSRF token, a pre-verified claim set).
// A Passport bundles the badges of one request, tracks which badges have
// been checked, and resolves to a Principal exactly once. Passports are
// request-scoped and never persisted.
package passport

// Kind identifies the type of fact a Badge asserts.
type Kind string

const (
	// KindIdentity is a claimed identity (login identifier, or a
	// provider-scoped id for OAuth logins).
	KindIdentity Kind = "identity"

	// KindPassword is a presented plaintext password. It must be checked
	// against a stored hash exactly once before the passport resolves.
	KindPassword Kind = "password-credential"

	// KindCSRF is a presented CSRF token for state-changing session
	// requests.
	KindCSRF Kind = "csrf-token"

	// KindClaims is a pre-verified claim set produced by a token verifier.
	// A passport carrying this badge resolves to a virtual principal with
	// no datastore lookup.
	KindClaims Kind = "verified-claims"
)

// Badge is one typed fact presented toward authenticating a request.
// Badges are immutable value objects.
type Badge interface {
	Kind() Kind
}

// IdentityBadge asserts who the request claims to be.
//
// For OAuth logins, Provider and ProviderID carry the provider-scoped
// identity; email alone is not a stable cross-provider key.
type IdentityBadge struct {
	// Identifier is the lookup identifier, typically an email address.
	Identifier string

	// Provider is the OAuth provider name, empty for local identities.
	Provider string

	// ProviderID is the provider-scoped subject id, empty for local
	// identities.
	ProviderID string
}

// Kind implements Badge.
func (IdentityBadge) Kind() Kind { return KindIdentity }

// PasswordBadge carries a presented plaintext password.
// It must never be logged or serialized.
type PasswordBadge struct {
	Plaintext string
}

// Kind implements Badge.
func (PasswordBadge) Kind() Kind { return KindPassword }

// CSRFBadge carries the CSRF token presented with a state-changing request.
type CSRFBadge struct {
	Presented string
}

// Kind implements Badge.
func (CSRFBadge) Kind() Kind { return KindCSRF }

// ClaimsBadge carries a claim set that has already been verified
// (signature and expiry checked) by a token verifier.
type ClaimsBadge struct {
	Subject string
	UserKey string
	Email   string
	Roles   []string
}

// Kind implements Badge.
func (ClaimsBadge) Kind() Kind { return KindClaims }
