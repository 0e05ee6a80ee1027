package authenticator

import (
	"errors"
	"fmt"
)

// Reason is a coarse, enumerated failure code. It is the only failure
// detail that may reach a client; underlying causes stay server-side.
type Reason string

const (
	// ReasonMissingToken: no bearer credentials on a request that
	// required them.
	ReasonMissingToken Reason = "missing_token"

	// ReasonInvalidToken: bearer token present but failed verification.
	ReasonInvalidToken Reason = "invalid_token"

	// ReasonExpiredToken: bearer token present but past expiry.
	ReasonExpiredToken Reason = "expired_token"

	// ReasonInvalidCredentials: form login with wrong identifier,
	// password or CSRF token.
	ReasonInvalidCredentials Reason = "invalid_credentials"

	// ReasonInvalidState: OAuth callback state mismatch or replay.
	ReasonInvalidState Reason = "invalid_state"

	// ReasonExchangeFailed: OAuth code exchange or userinfo fetch failed.
	ReasonExchangeFailed Reason = "exchange_failed"

	// ReasonAuthorizationRequired: the request needs an authenticated
	// principal it does not have; for OAuth this initiates the flow.
	ReasonAuthorizationRequired Reason = "authorization_required"
)

// Failure is a typed, recoverable authentication failure. The wrapped
// cause is for server-side logging only and must never cross into a
// client-visible outcome.
type Failure struct {
	reason Reason
	cause  error
}

// NewFailure creates a failure with the given reason and optional cause.
func NewFailure(reason Reason, cause error) *Failure {
	return &Failure{reason: reason, cause: cause}
}

// Reason returns the coarse failure code.
func (f *Failure) Reason() Reason { return f.reason }

// Error implements error.
func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("authentication failed (%s): %v", f.reason, f.cause)
	}
	return fmt.Sprintf("authentication failed (%s)", f.reason)
}

// Unwrap exposes the cause for server-side error inspection.
func (f *Failure) Unwrap() error { return f.cause }

// AsFailure extracts a *Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
