package authenticator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/palisadeproject/palisade/pkg/clock"
	"github.com/palisadeproject/palisade/pkg/passport"
	"github.com/palisadeproject/palisade/pkg/session"
)

func newForm(t *testing.T) (*Form, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(session.NewMemoryStore(clock.Real(), 0), "test_session", 0, false)
	f, err := NewForm(FormConfig{
		LoginPath:     "/login",
		LogoutPath:    "/logout",
		DefaultTarget: "/dashboard",
	}, mgr)
	if err != nil {
		t.Fatalf("NewForm failed: %v", err)
	}
	return f, mgr
}

func loginRequest(values url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/login", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestForm_Supports(t *testing.T) {
	f, _ := newForm(t)

	if !f.Supports(httptest.NewRequest("POST", "/login", nil)) {
		t.Error("Expected Supports=true for POST /login")
	}
	if f.Supports(httptest.NewRequest("GET", "/login", nil)) {
		t.Error("Expected Supports=false for GET /login")
	}
	if f.Supports(httptest.NewRequest("POST", "/other", nil)) {
		t.Error("Expected Supports=false for another path")
	}
}

func TestForm_AuthenticateBadges(t *testing.T) {
	f, _ := newForm(t)

	req := loginRequest(url.Values{
		"_identifier": {"a@b.com"},
		"_password":   {"hunter2"},
		"_csrf_token": {"csrf-1"},
	})

	p, err := f.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	id, _ := p.Badge(passport.KindIdentity)
	if id.(passport.IdentityBadge).Identifier != "a@b.com" {
		t.Errorf("Identity badge: got %+v", id)
	}
	pw, _ := p.Badge(passport.KindPassword)
	if pw.(passport.PasswordBadge).Plaintext != "hunter2" {
		t.Errorf("Password badge: got %+v", pw)
	}
	csrf, _ := p.Badge(passport.KindCSRF)
	if csrf.(passport.CSRFBadge).Presented != "csrf-1" {
		t.Errorf("CSRF badge: got %+v", csrf)
	}
}

func TestForm_AuthenticateMissingFields(t *testing.T) {
	f, _ := newForm(t)

	req := loginRequest(url.Values{"_identifier": {"a@b.com"}})

	_, err := f.Authenticate(context.Background(), req)
	failure, ok := AsFailure(err)
	if !ok || failure.Reason() != ReasonInvalidCredentials {
		t.Errorf("Expected invalid_credentials, got %v", err)
	}
}

func TestForm_OnSuccessPersistsAndRedirects(t *testing.T) {
	f, mgr := newForm(t)
	ctx := context.Background()

	w := httptest.NewRecorder()
	req := loginRequest(url.Values{})
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "sid-1"})

	pr, _ := passport.NewPrincipal("42", "a@b.com", []string{"ROLE_USER"})
	out := f.OnSuccess(w, req, pr)

	if out.Redirect != "/dashboard" {
		t.Errorf("Redirect: expected /dashboard, got %q", out.Redirect)
	}
	key, ok, _ := mgr.Store().Get(ctx, "sid-1", session.KeyPrincipal)
	if !ok || key != "42" {
		t.Errorf("Session principal: expected 42, got %q (present %v)", key, ok)
	}
}

func TestForm_OnSuccessUsesStashedTarget(t *testing.T) {
	f, mgr := newForm(t)
	ctx := context.Background()

	mgr.Store().Set(ctx, "sid-1", session.KeyTarget, "/reports/q3")

	w := httptest.NewRecorder()
	req := loginRequest(url.Values{})
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "sid-1"})

	pr, _ := passport.NewPrincipal("42", "a@b.com", []string{"ROLE_USER"})
	out := f.OnSuccess(w, req, pr)

	if out.Redirect != "/reports/q3" {
		t.Errorf("Redirect: expected stashed target, got %q", out.Redirect)
	}

	// The stash is one-shot.
	if _, ok, _ := mgr.Store().Get(ctx, "sid-1", session.KeyTarget); ok {
		t.Error("Expected stashed target to be consumed")
	}
}

func TestForm_OnFailureFlashAndRedirect(t *testing.T) {
	f, mgr := newForm(t)
	ctx := context.Background()

	w := httptest.NewRecorder()
	req := loginRequest(url.Values{})
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "sid-1"})

	out := f.OnFailure(w, req, NewFailure(ReasonInvalidCredentials, nil))
	if out.Redirect != "/login" {
		t.Errorf("Redirect: expected /login, got %q", out.Redirect)
	}

	flash, ok, _ := mgr.Store().Get(ctx, "sid-1", session.KeyFlash)
	if !ok || flash != "invalid_credentials" {
		t.Errorf("Flash: expected invalid_credentials, got %q (present %v)", flash, ok)
	}
}

func TestForm_OnFailureStashesTargetForAnonymousDenial(t *testing.T) {
	f, mgr := newForm(t)
	ctx := context.Background()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/reports/q3?tab=summary", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "sid-1"})

	out := f.OnFailure(w, req, NewFailure(ReasonAuthorizationRequired, nil))
	if out.Redirect != "/login" {
		t.Errorf("Redirect: expected /login, got %q", out.Redirect)
	}

	target, ok, _ := mgr.Store().Get(ctx, "sid-1", session.KeyTarget)
	if !ok || target != "/reports/q3?tab=summary" {
		t.Errorf("Target: expected original URI, got %q (present %v)", target, ok)
	}
}

func TestForm_Logout(t *testing.T) {
	f, mgr := newForm(t)
	ctx := context.Background()

	mgr.Store().Set(ctx, "sid-1", session.KeyPrincipal, "42")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "sid-1"})

	out := f.Logout(w, req)
	if out.Redirect != "/dashboard" {
		t.Errorf("Redirect: expected /dashboard, got %q", out.Redirect)
	}
	if _, ok, _ := mgr.Store().Get(ctx, "sid-1", session.KeyPrincipal); ok {
		t.Error("Expected session to be destroyed on logout")
	}
}

func TestClaimKey_Overlaps(t *testing.T) {
	bearer := ClaimKey{HeaderScheme: "Bearer"}
	form := ClaimKey{Path: "/login", Method: http.MethodPost}
	oauthCb := ClaimKey{Path: "/oauth/callback"}

	if bearer.Overlaps(form) || form.Overlaps(oauthCb) {
		t.Error("Distinct claims must not overlap")
	}
	if !bearer.Overlaps(ClaimKey{HeaderScheme: "Bearer"}) {
		t.Error("Same header scheme must overlap")
	}
	if !form.Overlaps(ClaimKey{Path: "/login"}) {
		t.Error("Path claim without method restriction must overlap same path")
	}
	if form.Overlaps(ClaimKey{Path: "/login", Method: http.MethodGet}) {
		t.Error("Same path with different methods must not overlap")
	}
}
