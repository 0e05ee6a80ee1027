// Package token verifies bearer tokens and decodes them into claim sets.
//
// Verification is a pure function of (token, configured key, current time):
// structural decode, signature check against exactly the configured
// algorithm, strict expiry check, then required-claims presence. Any step
// failing short-circuits; a partial claim set is never returned.
package token

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimSet is the decoded, verified payload of a bearer token.
// It is only ever constructed after signature and expiry verification
// succeed.
type ClaimSet struct {
	// Subject is the token subject ("sub").
	Subject string

	// UserKey is the opaque user key ("user_id"), normalized to a string.
	UserKey string

	// Email is the account identifier ("email").
	Email string

	// Roles is the role list ("roles"). Never empty in a verified set.
	Roles []string

	// ExpiresAt is the token expiry ("exp").
	ExpiresAt time.Time

	// Issuer is the token issuer ("iss"), when present.
	Issuer string
}

// bearerClaims is the wire shape of a bearer token payload.
type bearerClaims struct {
	jwt.RegisteredClaims
	UserID json.Number `json:"user_id,omitempty"`
	Email  string      `json:"email,omitempty"`
	Roles  []string    `json:"roles,omitempty"`
}
