package authenticator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/palisadeproject/palisade/pkg/passport"
	"github.com/palisadeproject/palisade/pkg/token"
)

// bearerPrefix is the literal scheme prefix the strategy claims.
const bearerPrefix = "Bearer "

// Bearer authenticates stateless API requests carrying a signed token.
//
// The principal is reconstructed entirely from the verified claim set
// with no datastore round-trip; stateless scalability is the point of
// this strategy.
type Bearer struct {
	verifier *token.Verifier
}

// NewBearer creates a bearer-token authenticator over the given verifier.
func NewBearer(verifier *token.Verifier) *Bearer {
	return &Bearer{verifier: verifier}
}

// Name implements Authenticator.
func (b *Bearer) Name() string { return "bearer" }

// Claim implements Authenticator.
func (b *Bearer) Claim() ClaimKey {
	return ClaimKey{HeaderScheme: "Bearer"}
}

// Supports implements Authenticator. Fast check only: the header is
// present and begins with the scheme prefix; no decoding is attempted.
func (b *Bearer) Supports(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), bearerPrefix)
}

// Authenticate implements Authenticator. Verifier failures surface as
// coarse reason codes; internal detail never reaches the client.
func (b *Bearer) Authenticate(_ context.Context, r *http.Request) (*passport.Passport, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if raw == "" {
		return nil, NewFailure(ReasonInvalidToken, errors.New("empty bearer token"))
	}

	claims, err := b.verifier.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, NewFailure(ReasonExpiredToken, err)
		}
		return nil, NewFailure(ReasonInvalidToken, err)
	}

	p, err := passport.New(passport.ClaimsBadge{
		Subject: claims.Subject,
		UserKey: claims.UserKey,
		Email:   claims.Email,
		Roles:   claims.Roles,
	})
	if err != nil {
		return nil, NewFailure(ReasonInvalidToken, err)
	}
	return p, nil
}

// OnSuccess implements Authenticator. API requests simply proceed.
func (b *Bearer) OnSuccess(_ http.ResponseWriter, _ *http.Request, _ *passport.Principal) Outcome {
	return Outcome{}
}

// OnFailure implements Authenticator. The body's type field is drawn from
// the closed token-failure enum.
func (b *Bearer) OnFailure(w http.ResponseWriter, _ *http.Request, failure *Failure) Outcome {
	reason := failure.Reason()
	switch reason {
	case ReasonMissingToken, ReasonInvalidToken, ReasonExpiredToken:
	case ReasonAuthorizationRequired:
		reason = ReasonMissingToken
	default:
		reason = ReasonInvalidToken
	}
	w.Header().Set("WWW-Authenticate", "Bearer")
	return JSONOutcome(http.StatusUnauthorized, map[string]string{"type": string(reason)})
}
