// Package authenticator defines the uniform per-strategy authentication
// contract and its form, bearer and OAuth implementations.
//
// A firewall holds an ordered list of authenticators. Supports is a fast,
// side-effect-free claim check; at most one authenticator in a firewall
// may claim a given request, enforced at configuration load through
// ClaimKey overlap checks. Authenticate builds a Passport from request
// data without performing transport side effects; those belong to the
// OnSuccess and OnFailure handlers.
package authenticator

import (
	"context"
	"net/http"

	"github.com/palisadeproject/palisade/pkg/passport"
)

// Authenticator converts an incoming request into a Passport and turns
// the pipeline's verdict into a transport-level outcome.
// Implementations must be safe for concurrent use.
type Authenticator interface {
	// Name identifies the strategy for logging and metrics.
	Name() string

	// Claim describes the request shape this strategy lays claim to.
	// Used for the startup pairwise-overlap check.
	Claim() ClaimKey

	// Supports reports whether this strategy claims the request. It must
	// be fast and free of side effects: header and path inspection only,
	// no decoding, no session reads.
	Supports(r *http.Request) bool

	// Authenticate builds a Passport from request data.
	//
	// Returns:
	//   - (*Passport, nil): credentials extracted, ready for checking
	//   - (nil, nil): not applicable after all, proceed as anonymous
	//   - (nil, *Failure): applicable but invalid
	//
	// Implementations must not write sessions or issue tokens here.
	Authenticate(ctx context.Context, r *http.Request) (*passport.Passport, error)

	// OnSuccess produces the strategy's success outcome and may perform
	// transport side effects (session writes, cookies).
	OnSuccess(w http.ResponseWriter, r *http.Request, principal *passport.Principal) Outcome

	// OnFailure produces the strategy's failure outcome for the given
	// coarse reason. For OAuth this doubles as flow initiation.
	OnFailure(w http.ResponseWriter, r *http.Request, failure *Failure) Outcome
}

// ClaimKey describes the request shape a strategy claims: an
// Authorization scheme, or a path (optionally restricted by method), or a
// query parameter on any path. Two keys that could match the same request
// overlap, which is a configuration error within one firewall.
type ClaimKey struct {
	// HeaderScheme is the Authorization scheme prefix, e.g. "Bearer".
	HeaderScheme string

	// Path is the exact path claimed (login endpoint, OAuth callback).
	Path string

	// Method optionally restricts a Path claim to one HTTP method.
	Method string
}

// Overlaps reports whether two claim keys could claim the same request.
func (k ClaimKey) Overlaps(other ClaimKey) bool {
	if k.HeaderScheme != "" && k.HeaderScheme == other.HeaderScheme {
		return true
	}
	if k.Path != "" && k.Path == other.Path {
		if k.Method == "" || other.Method == "" || k.Method == other.Method {
			return true
		}
	}
	return false
}
