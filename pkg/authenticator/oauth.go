package authenticator

import (
	"context"
	"errors"
	"net/http"

	"github.com/palisadeproject/palisade/pkg/oauth"
	"github.com/palisadeproject/palisade/pkg/passport"
	"github.com/palisadeproject/palisade/pkg/session"
)

// OAuthConfig configures the OAuth strategy.
type OAuthConfig struct {
	// CallbackPath is the redirect URI path the provider returns to.
	CallbackPath string

	// FailureTarget is the generic failure page for exchange errors.
	// Provider error payloads are never exposed.
	FailureTarget string

	// DefaultTarget is where a successful login lands when no original
	// target was stashed.
	DefaultTarget string
}

func (c *OAuthConfig) withDefaults() OAuthConfig {
	out := *c
	if out.DefaultTarget == "" {
		out.DefaultTarget = "/"
	}
	if out.FailureTarget == "" {
		out.FailureTarget = "/login"
	}
	return out
}

// OAuth authenticates through an external provider using the
// authorization-code flow. The strategy is two-phase, driven by the
// presence of the code parameter: without one the failure path initiates
// the flow; with one the callback is validated and exchanged.
type OAuth struct {
	cfg      OAuthConfig
	client   *oauth.Client
	states   oauth.StateStore
	sessions *session.Manager
}

// NewOAuth creates an OAuth authenticator.
func NewOAuth(cfg OAuthConfig, client *oauth.Client, states oauth.StateStore, sessions *session.Manager) (*OAuth, error) {
	if cfg.CallbackPath == "" {
		return nil, errors.New("oauth callback path must not be empty")
	}
	if client == nil || states == nil || sessions == nil {
		return nil, errors.New("oauth strategy requires client, state store and session manager")
	}
	return &OAuth{cfg: cfg.withDefaults(), client: client, states: states, sessions: sessions}, nil
}

// Name implements Authenticator.
func (o *OAuth) Name() string { return "oauth:" + o.client.Provider() }

// Claim implements Authenticator.
func (o *OAuth) Claim() ClaimKey {
	return ClaimKey{Path: o.cfg.CallbackPath}
}

// Supports implements Authenticator.
func (o *OAuth) Supports(r *http.Request) bool {
	return r.URL.Path == o.cfg.CallbackPath
}

// Authenticate implements Authenticator.
//
// The state is consumed atomically and invalidated on first use
// regardless of outcome; a concurrent duplicate callback loses the race.
func (o *OAuth) Authenticate(ctx context.Context, r *http.Request) (*passport.Passport, error) {
	query := r.URL.Query()
	code := query.Get("code")
	if code == "" {
		// No code yet: the failure path initiates the flow.
		return nil, NewFailure(ReasonAuthorizationRequired, nil)
	}

	sid, ok := o.sessions.SessionID(r)
	if !ok {
		return nil, NewFailure(ReasonInvalidState, errors.New("callback without a session"))
	}

	st, ok, err := o.states.Consume(ctx, sid, query.Get("state"))
	if err != nil {
		// Fail closed on state-store errors.
		return nil, NewFailure(ReasonInvalidState, err)
	}
	if !ok {
		return nil, NewFailure(ReasonInvalidState, errors.New("state mismatch or replay"))
	}

	profile, err := o.client.Exchange(ctx, code, st)
	if err != nil {
		return nil, NewFailure(ReasonExchangeFailed, err)
	}

	// Identity is keyed by (provider, provider id); emails are not
	// guaranteed stable or unique across providers.
	return passport.New(passport.IdentityBadge{
		Identifier: profile.Email,
		Provider:   profile.Provider,
		ProviderID: profile.ID,
	})
}

// OnSuccess implements Authenticator: persist the principal and return to
// the stashed target.
func (o *OAuth) OnSuccess(w http.ResponseWriter, r *http.Request, principal *passport.Principal) Outcome {
	ctx := r.Context()
	sid := o.sessions.Ensure(w, r)
	store := o.sessions.Store()

	if err := store.Set(ctx, sid, session.KeyPrincipal, principal.Key()); err != nil {
		return Outcome{Status: http.StatusInternalServerError}
	}

	target := o.cfg.DefaultTarget
	if stashed, ok, _ := store.TakeOnce(ctx, sid, session.KeyTarget); ok && stashed != "" {
		target = stashed
	}
	return RedirectOutcome(target)
}

// OnFailure implements Authenticator. Flow initiation and state-mismatch
// restarts redirect to the provider with fresh state; exchange failures
// land on the generic failure page.
func (o *OAuth) OnFailure(w http.ResponseWriter, r *http.Request, failure *Failure) Outcome {
	switch failure.Reason() {
	case ReasonAuthorizationRequired, ReasonInvalidState:
		return o.begin(w, r, failure.Reason())
	default:
		return RedirectOutcome(o.cfg.FailureTarget)
	}
}

// begin generates fresh state (and PKCE verifier), persists it across the
// redirect round-trip, and sends the user agent to the provider.
func (o *OAuth) begin(w http.ResponseWriter, r *http.Request, reason Reason) Outcome {
	ctx := r.Context()
	sid := o.sessions.Ensure(w, r)

	target := ""
	if reason == ReasonAuthorizationRequired && r.Method == http.MethodGet && r.URL.Path != o.cfg.CallbackPath {
		target = r.URL.RequestURI()
	}

	redirectURL, st, err := o.client.Begin(target)
	if err != nil {
		return RedirectOutcome(o.cfg.FailureTarget)
	}
	if err := o.states.Save(ctx, sid, st); err != nil {
		return RedirectOutcome(o.cfg.FailureTarget)
	}
	if target != "" {
		_ = o.sessions.Store().Set(ctx, sid, session.KeyTarget, target)
	}
	return RedirectOutcome(redirectURL)
}
