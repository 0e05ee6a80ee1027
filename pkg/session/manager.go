package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultCookieName is used when a firewall does not configure one.
const DefaultCookieName = "palisade_session"

// Well-known session keys used by the pipeline.
const (
	// KeyPrincipal holds the user key of the logged-in principal.
	KeyPrincipal = "principal-key"

	// KeyCSRF holds the expected CSRF token for the session.
	KeyCSRF = "csrf-token"

	// KeyFlash holds a one-shot message for the next page render.
	KeyFlash = "flash"

	// KeyTarget holds the originally requested path to return to after
	// login.
	KeyTarget = "login-target"

	// KeyOAuthState holds the pending OAuth authorization state.
	KeyOAuthState = "oauth-state"
)

// Manager binds a Store to a session cookie.
type Manager struct {
	store      Store
	cookieName string
	lifetime   time.Duration
	secure     bool
}

// NewManager creates a cookie-backed session manager.
func NewManager(store Store, cookieName string, lifetime time.Duration, secure bool) *Manager {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Manager{
		store:      store,
		cookieName: cookieName,
		lifetime:   lifetime,
		secure:     secure,
	}
}

// Store returns the underlying session store.
func (m *Manager) Store() Store { return m.store }

// CookieName returns the session cookie name.
func (m *Manager) CookieName() string { return m.cookieName }

// SessionID returns the request's session id, if the cookie is present.
func (m *Manager) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Ensure returns the request's session id, creating a new session and
// setting the cookie when none exists.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) string {
	if sid, ok := m.SessionID(r); ok {
		return sid
	}
	sid := uuid.NewString()
	http.SetCookie(w, m.cookie(sid, m.lifetime))
	return sid
}

// Invalidate destroys the session and expires the cookie.
func (m *Manager) Invalidate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sid, ok := m.SessionID(r)
	if !ok {
		return nil
	}
	http.SetCookie(w, m.cookie("", -time.Hour))
	return m.store.Destroy(ctx, sid)
}

func (m *Manager) cookie(value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
	} else if maxAge < 0 {
		c.MaxAge = -1
	}
	return c
}
