package firewall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/palisadeproject/palisade/pkg/access"
	"github.com/palisadeproject/palisade/pkg/authenticator"
	"github.com/palisadeproject/palisade/pkg/passport"
	"github.com/palisadeproject/palisade/pkg/session"
	"github.com/palisadeproject/palisade/pkg/user"
)

// Dispatcher routes each request to at most one firewall and runs the
// authentication pipeline against it.
type Dispatcher struct {
	firewalls []*Definition
	policy    *access.Policy
	logger    *slog.Logger
	metrics   *Metrics
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics wires pipeline metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher validates the definitions and builds a dispatcher.
// Definition order is dispatch order; the first matching firewall wins.
// Requests matching no firewall fall through to an implicit anonymous
// firewall with no authenticators.
func NewDispatcher(defs []*Definition, policy *access.Policy, opts ...Option) (*Dispatcher, error) {
	if policy == nil {
		return nil, errors.New("dispatcher requires an access policy")
	}

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if err := def.compile(); err != nil {
			return nil, err
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("duplicate firewall name %q", def.Name)
		}
		seen[def.Name] = true
	}

	d := &Dispatcher{
		firewalls: defs,
		policy:    policy,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Select returns the first firewall whose pattern matches the path, or
// nil for the implicit anonymous catch-all.
func (d *Dispatcher) Select(path string) *Definition {
	for _, fw := range d.firewalls {
		if fw.Matches(path) {
			return fw
		}
	}
	return nil
}

// Firewalls returns the definitions in dispatch order.
func (d *Dispatcher) Firewalls() []*Definition {
	return d.firewalls
}

// Policy returns the access policy.
func (d *Dispatcher) Policy() *access.Policy {
	return d.policy
}

// handle runs the full pipeline for one request and returns the
// transport outcome plus the authenticated principal, if any. A proceed
// outcome with a nil principal is an allowed anonymous request.
func (d *Dispatcher) handle(w http.ResponseWriter, r *http.Request) (authenticator.Outcome, *passport.Principal) {
	start := time.Now()
	path := r.URL.Path

	fw := d.Select(path)
	if fw == nil {
		out, pr := d.anonymous(w, r, "-", nil, nil)
		d.observe(start)
		return out, pr
	}

	// Logout short-circuits the pipeline: no credentials are involved.
	for _, a := range fw.Authenticators {
		if form, ok := a.(*authenticator.Form); ok && form.LogoutPath() != "" && path == form.LogoutPath() {
			d.observe(start)
			return form.Logout(w, r), nil
		}
	}

	active := activeAuthenticator(fw, r)
	if active == nil {
		restored := d.restore(r, fw)
		var entry authenticator.Authenticator
		if len(fw.Authenticators) > 0 {
			entry = fw.Authenticators[0]
		}
		out, pr := d.anonymous(w, r, fw.Name, restored, entry)
		d.observe(start)
		return out, pr
	}

	pass, err := active.Authenticate(r.Context(), r)
	if err != nil {
		failure, ok := authenticator.AsFailure(err)
		if !ok {
			// Unexpected errors fail closed behind a coarse reason; the
			// cause stays in the log.
			failure = authenticator.NewFailure(authenticator.ReasonInvalidCredentials, err)
		}
		d.logger.Warn("authentication failed",
			"firewall", fw.Name,
			"authenticator", active.Name(),
			"reason", string(failure.Reason()),
			"error", err)
		d.countAttempt(fw.Name, active.Name(), "failure")
		d.observe(start)
		return active.OnFailure(w, r, failure), nil
	}

	if pass == nil {
		// The strategy declined after all; the request proceeds as
		// anonymous with the active strategy as entry point.
		restored := d.restore(r, fw)
		out, pr := d.anonymous(w, r, fw.Name, restored, active)
		d.observe(start)
		return out, pr
	}

	principal, failure := d.resolve(r, fw, pass)
	if failure != nil {
		d.logger.Warn("credential check failed",
			"firewall", fw.Name,
			"authenticator", active.Name(),
			"reason", string(failure.Reason()),
			"error", failure.Unwrap())
		d.countAttempt(fw.Name, active.Name(), "failure")
		d.observe(start)
		return active.OnFailure(w, r, failure), nil
	}

	decision := d.policy.Evaluate(path, principal)
	d.countDecision(decision)
	if decision == access.Deny {
		// Authenticated but not authorized. Distinct from "please log in".
		d.logger.Info("access denied",
			"firewall", fw.Name,
			"principal", principal.Key(),
			"path", path)
		d.countAttempt(fw.Name, active.Name(), "forbidden")
		d.observe(start)
		return authenticator.ForbiddenOutcome(), principal
	}

	d.logger.Info("authentication succeeded",
		"firewall", fw.Name,
		"authenticator", active.Name(),
		"principal", principal.Key())
	d.countAttempt(fw.Name, active.Name(), "success")
	d.observe(start)
	return active.OnSuccess(w, r, principal), principal
}

// anonymous handles a request with no active authenticator: an existing
// session may still carry a principal, and the access policy decides.
func (d *Dispatcher) anonymous(w http.ResponseWriter, r *http.Request, firewallName string, restored *passport.Principal, entry authenticator.Authenticator) (authenticator.Outcome, *passport.Principal) {
	decision := d.policy.Evaluate(r.URL.Path, restored)
	d.countDecision(decision)
	if decision == access.Allow {
		return authenticator.Outcome{}, restored
	}

	if restored != nil {
		d.logger.Info("access denied",
			"firewall", firewallName,
			"principal", restored.Key(),
			"path", r.URL.Path)
		return authenticator.ForbiddenOutcome(), restored
	}

	// Anonymous and denied: hand off to the firewall's entry point so the
	// strategy can start its flow (redirect to login, 401 challenge).
	failure := authenticator.NewFailure(authenticator.ReasonAuthorizationRequired, nil)
	if entry != nil {
		return entry.OnFailure(w, r, failure), nil
	}
	return authenticator.JSONOutcome(http.StatusUnauthorized,
		map[string]string{"type": string(authenticator.ReasonAuthorizationRequired)}), nil
}

// restore reconstructs a principal from the session, re-reading the user
// record so role changes and deletions take effect immediately.
func (d *Dispatcher) restore(r *http.Request, fw *Definition) *passport.Principal {
	if fw.Sessions == nil || fw.Users == nil {
		return nil
	}
	sid, ok := fw.Sessions.SessionID(r)
	if !ok {
		return nil
	}
	ctx := r.Context()
	key, ok, err := fw.Sessions.Store().Get(ctx, sid, session.KeyPrincipal)
	if err != nil || !ok {
		return nil
	}

	lctx, cancel := context.WithTimeout(ctx, fw.LookupTimeout)
	defer cancel()
	rec, err := fw.Users.FindByKey(lctx, key)
	if err != nil {
		// Fail closed: a lookup error downgrades to anonymous.
		d.logger.Warn("session restore lookup failed", "firewall", fw.Name, "error", err)
		return nil
	}
	if rec == nil || len(rec.Roles) == 0 {
		// The account is gone or unusable; the session is stale.
		_ = fw.Sessions.Store().Destroy(ctx, sid)
		return nil
	}

	principal, err := passport.NewPrincipal(rec.Key, rec.Identifier, rec.Roles)
	if err != nil {
		return nil
	}
	return principal
}

// resolve verifies the passport's badges and resolves its principal.
// Each badge is consumed exactly once; any failed check aborts with a
// coarse reason.
func (d *Dispatcher) resolve(r *http.Request, fw *Definition, pass *passport.Passport) (*passport.Principal, *authenticator.Failure) {
	ctx := r.Context()

	// A claims badge is self-contained: the verifier already proved it,
	// so the principal is rebuilt without touching the user store.
	if b, ok := pass.Badge(passport.KindClaims); ok {
		claims := b.(passport.ClaimsBadge)
		if err := pass.MarkChecked(passport.KindClaims); err != nil {
			return nil, authenticator.NewFailure(authenticator.ReasonInvalidToken, err)
		}
		principal, err := passport.NewVirtualPrincipal(claims.UserKey, claims.Email, claims.Roles)
		if err != nil {
			return nil, authenticator.NewFailure(authenticator.ReasonInvalidToken, err)
		}
		if err := pass.Resolve(principal); err != nil {
			return nil, authenticator.NewFailure(authenticator.ReasonInvalidToken, err)
		}
		return principal, nil
	}

	idBadge, ok := pass.Badge(passport.KindIdentity)
	if !ok {
		return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials,
			errors.New("passport carries no identity badge"))
	}
	identity := idBadge.(passport.IdentityBadge)

	// CSRF is checked before any credential work so forged cross-site
	// posts never reach the password checker.
	if b, ok := pass.Badge(passport.KindCSRF); ok {
		if fw.Sessions == nil || fw.CSRF == nil {
			return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials,
				errors.New("csrf badge without a csrf checker"))
		}
		expected := ""
		if sid, ok := fw.Sessions.SessionID(r); ok {
			expected, _, _ = fw.Sessions.Store().Get(ctx, sid, session.KeyCSRF)
		}
		if !fw.CSRF.Verify(b.(passport.CSRFBadge).Presented, expected) {
			return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials,
				errors.New("csrf token mismatch"))
		}
		if err := pass.MarkChecked(passport.KindCSRF); err != nil {
			return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials, err)
		}
	}

	if fw.Users == nil {
		return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials,
			errors.New("identity badge without a user provider"))
	}

	lctx, cancel := context.WithTimeout(ctx, fw.LookupTimeout)
	defer cancel()

	var rec *user.Record
	var err error
	if identity.Provider != "" {
		rec, err = fw.Users.FindByProviderID(lctx, identity.Provider, identity.ProviderID)
		if err == nil && rec == nil && fw.AutoProvision {
			rec, err = fw.Users.Provision(lctx, user.Record{
				Identifier: identity.Identifier,
				Provider:   identity.Provider,
				ProviderID: identity.ProviderID,
				Roles:      fw.ProvisionRoles,
			})
		}
	} else {
		rec, err = fw.Users.FindByIdentifier(lctx, identity.Identifier)
	}
	if err != nil {
		// Fail closed on lookup errors; the cause stays server-side.
		return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials, err)
	}
	if rec == nil {
		return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials,
			errors.New("unknown account"))
	}
	if err := pass.MarkChecked(passport.KindIdentity); err != nil {
		return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials, err)
	}

	if b, ok := pass.Badge(passport.KindPassword); ok {
		if fw.Passwords == nil {
			return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials,
				errors.New("password badge without a password checker"))
		}
		if !fw.Passwords.Verify(b.(passport.PasswordBadge).Plaintext, rec.PasswordHash) {
			return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials,
				errors.New("password mismatch"))
		}
		if err := pass.MarkChecked(passport.KindPassword); err != nil {
			return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials, err)
		}
	} else if identity.Provider == "" {
		// A local identity with no password badge has nothing proving it.
		return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials,
			errors.New("no credential badge for local identity"))
	}

	principal, err := passport.NewPrincipal(rec.Key, rec.Identifier, rec.Roles)
	if err != nil {
		// An account without roles can never resolve.
		return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials, err)
	}
	if err := pass.Resolve(principal); err != nil {
		return nil, authenticator.NewFailure(authenticator.ReasonInvalidCredentials, err)
	}
	return principal, nil
}

// activeAuthenticator returns the first strategy claiming the request.
// Overlap validation guarantees at most one can.
func activeAuthenticator(fw *Definition, r *http.Request) authenticator.Authenticator {
	for _, a := range fw.Authenticators {
		if a.Supports(r) {
			return a
		}
	}
	return nil
}

func (d *Dispatcher) countAttempt(firewall, auth, result string) {
	if d.metrics != nil {
		d.metrics.attempts.WithLabelValues(firewall, auth, result).Inc()
	}
}

func (d *Dispatcher) countDecision(decision access.Decision) {
	if d.metrics != nil {
		d.metrics.decisions.WithLabelValues(decision.String()).Inc()
	}
}

func (d *Dispatcher) observe(start time.Time) {
	if d.metrics != nil {
		d.metrics.duration.Observe(time.Since(start).Seconds())
	}
}
