package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// CSRFChecker verifies presented CSRF tokens in constant time.
type CSRFChecker interface {
	Verify(presented, expected string) bool
}

// csrfChecker is the default constant-time checker.
type csrfChecker struct{}

// NewCSRFChecker returns the default CSRF checker.
func NewCSRFChecker() CSRFChecker { return csrfChecker{} }

// Verify implements CSRFChecker using a constant-time comparison.
func (csrfChecker) Verify(presented, expected string) bool {
	if presented == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// IssueCSRFToken generates a fresh CSRF token for the session and stores
// it under KeyCSRF. An existing token is returned unchanged so all forms
// rendered during the session share one token.
func IssueCSRFToken(ctx context.Context, store Store, sessionID string) (string, error) {
	if existing, ok, err := store.Get(ctx, sessionID, KeyCSRF); err != nil {
		return "", err
	} else if ok {
		return existing, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	tok := base64.RawURLEncoding.EncodeToString(buf)

	if err := store.Set(ctx, sessionID, KeyCSRF, tok); err != nil {
		return "", err
	}
	return tok, nil
}
