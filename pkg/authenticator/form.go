package authenticator

import (
	"context"
	"errors"
	"net/http"

	"github.com/palisadeproject/palisade/pkg/passport"
	"github.com/palisadeproject/palisade/pkg/session"
)

// Default form field names.
const (
	DefaultIdentifierField = "_identifier"
	DefaultPasswordField   = "_password"
	DefaultCSRFField       = "_csrf_token"
)

// FormConfig configures the form-login strategy.
type FormConfig struct {
	// LoginPath receives the credential POST. Also the failure redirect
	// target unless FailureTarget is set.
	LoginPath string

	// LogoutPath, when non-empty, invalidates the session and redirects.
	LogoutPath string

	// DefaultTarget is where a successful login lands when no original
	// target was stashed.
	DefaultTarget string

	// FailureTarget overrides the failure redirect, defaulting to
	// LoginPath.
	FailureTarget string

	// Field name overrides; defaults above.
	IdentifierField string
	PasswordField   string
	CSRFField       string
}

func (c *FormConfig) withDefaults() FormConfig {
	out := *c
	if out.DefaultTarget == "" {
		out.DefaultTarget = "/"
	}
	if out.FailureTarget == "" {
		out.FailureTarget = out.LoginPath
	}
	if out.IdentifierField == "" {
		out.IdentifierField = DefaultIdentifierField
	}
	if out.PasswordField == "" {
		out.PasswordField = DefaultPasswordField
	}
	if out.CSRFField == "" {
		out.CSRFField = DefaultCSRFField
	}
	return out
}

// Form authenticates interactive logins posted to the login path and
// keeps the result in a server-side session.
type Form struct {
	cfg      FormConfig
	sessions *session.Manager
}

// NewForm creates a form-login authenticator.
func NewForm(cfg FormConfig, sessions *session.Manager) (*Form, error) {
	if cfg.LoginPath == "" {
		return nil, errors.New("form login path must not be empty")
	}
	if sessions == nil {
		return nil, errors.New("form strategy requires a session manager")
	}
	return &Form{cfg: cfg.withDefaults(), sessions: sessions}, nil
}

// Name implements Authenticator.
func (f *Form) Name() string { return "form" }

// Claim implements Authenticator.
func (f *Form) Claim() ClaimKey {
	return ClaimKey{Path: f.cfg.LoginPath, Method: http.MethodPost}
}

// LogoutPath returns the configured logout path, empty when disabled.
func (f *Form) LogoutPath() string { return f.cfg.LogoutPath }

// Supports implements Authenticator.
func (f *Form) Supports(r *http.Request) bool {
	return r.Method == http.MethodPost && r.URL.Path == f.cfg.LoginPath
}

// Authenticate implements Authenticator. The passport carries identity,
// password and CSRF badges; the pipeline's checkers consume each exactly
// once.
func (f *Form) Authenticate(_ context.Context, r *http.Request) (*passport.Passport, error) {
	if err := r.ParseForm(); err != nil {
		return nil, NewFailure(ReasonInvalidCredentials, err)
	}

	identifier := r.PostFormValue(f.cfg.IdentifierField)
	password := r.PostFormValue(f.cfg.PasswordField)
	if identifier == "" || password == "" {
		return nil, NewFailure(ReasonInvalidCredentials, errors.New("missing credential fields"))
	}

	return passport.New(
		passport.IdentityBadge{Identifier: identifier},
		passport.PasswordBadge{Plaintext: password},
		passport.CSRFBadge{Presented: r.PostFormValue(f.cfg.CSRFField)},
	)
}

// OnSuccess implements Authenticator: persist the principal in the
// session and return to the stashed target, or the default.
func (f *Form) OnSuccess(w http.ResponseWriter, r *http.Request, principal *passport.Principal) Outcome {
	ctx := r.Context()
	sid := f.sessions.Ensure(w, r)
	store := f.sessions.Store()

	if err := store.Set(ctx, sid, session.KeyPrincipal, principal.Key()); err != nil {
		return Outcome{Status: http.StatusInternalServerError}
	}

	target := f.cfg.DefaultTarget
	if stashed, ok, _ := store.TakeOnce(ctx, sid, session.KeyTarget); ok && stashed != "" {
		target = stashed
	}
	return RedirectOutcome(target)
}

// OnFailure implements Authenticator: stash a flash message and redirect
// back to the login page. When an anonymous request was denied access,
// the original path is stashed so login can return there.
func (f *Form) OnFailure(w http.ResponseWriter, r *http.Request, failure *Failure) Outcome {
	ctx := r.Context()
	sid := f.sessions.Ensure(w, r)
	store := f.sessions.Store()

	if failure.Reason() == ReasonAuthorizationRequired {
		if r.Method == http.MethodGet && r.URL.Path != f.cfg.LoginPath {
			_ = store.Set(ctx, sid, session.KeyTarget, r.URL.RequestURI())
		}
	} else {
		_ = store.Set(ctx, sid, session.KeyFlash, string(failure.Reason()))
	}
	return RedirectOutcome(f.cfg.FailureTarget)
}

// Logout invalidates the session and redirects to the default target.
func (f *Form) Logout(w http.ResponseWriter, r *http.Request) Outcome {
	_ = f.sessions.Invalidate(r.Context(), w, r)
	return RedirectOutcome(f.cfg.DefaultTarget)
}
