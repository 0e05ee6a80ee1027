package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/palisadeproject/palisade/pkg/clock"
)

var (
	// ErrMalformed is returned when the token fails structural decoding.
	ErrMalformed = errors.New("malformed token")

	// ErrAlgorithm is returned when the token was signed with an
	// algorithm other than the one the verifier is configured for.
	// The verifier never honors an algorithm supplied by the token.
	ErrAlgorithm = errors.New("unexpected signing algorithm")

	// ErrSignature is returned when the signature does not verify
	// against the configured key.
	ErrSignature = errors.New("invalid token signature")

	// ErrExpired is returned when the expiry is not strictly in the
	// future (a token with exp == now is rejected).
	ErrExpired = errors.New("token expired")

	// ErrMissingClaims is returned when a required claim (sub, user_id,
	// email, roles, exp) is absent or empty.
	ErrMissingClaims = errors.New("token missing required claims")

	// ErrVerification is returned for verification failures with no more
	// specific classification.
	ErrVerification = errors.New("token verification failed")
)

// Verifier validates bearer tokens against a configured key and a single
// pinned signing algorithm.
//
// Verifiers are immutable and safe for concurrent use.
type Verifier struct {
	key    []byte
	alg    string
	issuer string
	clk    clock.Clock
	parser *jwt.Parser
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithIssuer requires the "iss" claim to match the given issuer.
func WithIssuer(issuer string) Option {
	return func(v *Verifier) { v.issuer = issuer }
}

// NewVerifier creates a verifier for the given HMAC key and algorithm
// (HS256, HS384 or HS512).
//
// An empty key or unsupported algorithm is a configuration error; callers
// must refuse to start rather than run with it.
func NewVerifier(key []byte, alg string, clk clock.Clock, opts ...Option) (*Verifier, error) {
	if len(key) == 0 {
		return nil, errors.New("verifier key must not be empty")
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", alg)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q (HMAC family required)", alg)
	}
	if clk == nil {
		clk = clock.Real()
	}

	v := &Verifier{
		key: key,
		alg: alg,
		clk: clk,
	}
	for _, opt := range opts {
		opt(v)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithTimeFunc(clk.Now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	v.parser = jwt.NewParser(parserOpts...)

	return v, nil
}

// Algorithm returns the pinned signing algorithm.
func (v *Verifier) Algorithm() string { return v.alg }

// Verify validates the raw token and decodes it into a claim set.
//
// Returned errors wrap exactly one of the package sentinels; internal
// detail stays server-side and must not be forwarded to clients.
func (v *Verifier) Verify(raw string) (*ClaimSet, error) {
	claims := &bearerClaims{}

	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		// WithValidMethods already pins the algorithm; this is the
		// keyfunc-level restatement so the check cannot be bypassed by
		// a parser misconfiguration.
		if t.Method.Alg() != v.alg {
			return nil, ErrAlgorithm
		}
		return v.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	set := &ClaimSet{
		Subject: claims.Subject,
		UserKey: claims.UserID.String(),
		Email:   claims.Email,
		Roles:   claims.Roles,
		Issuer:  claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		set.ExpiresAt = claims.ExpiresAt.Time
	}

	if set.Subject == "" || claims.UserID == "" || set.Email == "" || len(set.Roles) == 0 {
		return nil, ErrMissingClaims
	}

	return set, nil
}

// classify maps jwt library errors onto the package sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrAlgorithm):
		return fmt.Errorf("%w: %v", ErrAlgorithm, errDetail(err))
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrVerification, errDetail(err))
	}
}

// errDetail keeps wrapped detail terse; raw library messages never reach
// clients, only server-side logs.
func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
