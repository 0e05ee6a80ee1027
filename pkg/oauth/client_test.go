package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/palisadeproject/palisade/pkg/clock"
)

// fakeProvider is an httptest-backed OAuth provider.
type fakeProvider struct {
	srv          *httptest.Server
	tokenCalls   int
	userinfoFail bool
	lastVerifier string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls++
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		p.lastVerifier = r.PostFormValue("code_verifier")
		if r.PostFormValue("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"provider-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if p.userinfoFail {
			http.Error(w, "upstream broken", http.StatusBadGateway)
			return
		}
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"sub":"gh-1001","email":"a@b.com","name":"Ada"}`)
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) clientConfig() Config {
	return Config{
		Provider:     "github",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      p.srv.URL + "/authorize",
		TokenURL:     p.srv.URL + "/token",
		UserinfoURL:  p.srv.URL + "/userinfo",
		RedirectURL:  "http://localhost/oauth/callback",
		Scopes:       []string{"user:email"},
		PKCE:         true,
	}
}

func TestClient_BeginPKCE(t *testing.T) {
	p := newFakeProvider(t)
	c, err := NewClient(p.clientConfig(), clock.Real())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	redirect, st, err := c.Begin("/dashboard")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if st.Value == "" {
		t.Error("Expected a non-empty state value")
	}
	if st.Verifier == "" {
		t.Error("Expected a PKCE verifier")
	}
	if st.Target != "/dashboard" {
		t.Errorf("Target: expected /dashboard, got %q", st.Target)
	}

	u, err := url.Parse(redirect)
	if err != nil {
		t.Fatalf("Redirect URL unparsable: %v", err)
	}
	q := u.Query()
	if q.Get("state") != st.Value {
		t.Errorf("state param: expected %q, got %q", st.Value, q.Get("state"))
	}
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		t.Errorf("Expected S256 code challenge, got %q/%q", q.Get("code_challenge"), q.Get("code_challenge_method"))
	}
	if !strings.Contains(q.Get("scope"), "user:email") {
		t.Errorf("scope param: expected user:email, got %q", q.Get("scope"))
	}
}

func TestClient_BeginFreshState(t *testing.T) {
	p := newFakeProvider(t)
	c, _ := NewClient(p.clientConfig(), clock.Real())

	_, first, _ := c.Begin("/")
	_, second, _ := c.Begin("/")
	if first.Value == second.Value {
		t.Error("Each attempt must get a fresh state value")
	}
	if first.Verifier == second.Verifier {
		t.Error("Each attempt must get a fresh verifier")
	}
}

func TestClient_Exchange(t *testing.T) {
	p := newFakeProvider(t)
	c, _ := NewClient(p.clientConfig(), clock.Real())

	_, st, _ := c.Begin("/")

	profile, err := c.Exchange(context.Background(), "good-code", st)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if profile.Provider != "github" {
		t.Errorf("Provider: expected github, got %q", profile.Provider)
	}
	if profile.ID != "gh-1001" {
		t.Errorf("ID: expected gh-1001, got %q", profile.ID)
	}
	if profile.Email != "a@b.com" {
		t.Errorf("Email: expected a@b.com, got %q", profile.Email)
	}
	if p.lastVerifier != st.Verifier {
		t.Errorf("Token endpoint saw verifier %q, expected %q", p.lastVerifier, st.Verifier)
	}
}

func TestClient_ExchangeBadCode(t *testing.T) {
	p := newFakeProvider(t)
	c, _ := NewClient(p.clientConfig(), clock.Real())

	_, st, _ := c.Begin("/")

	_, err := c.Exchange(context.Background(), "bad-code", st)
	if !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("Expected ErrExchangeFailed, got %v", err)
	}
}

func TestClient_UserinfoFailure(t *testing.T) {
	p := newFakeProvider(t)
	p.userinfoFail = true
	c, _ := NewClient(p.clientConfig(), clock.Real())

	_, st, _ := c.Begin("/")

	_, err := c.Exchange(context.Background(), "good-code", st)
	if !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("Expected ErrExchangeFailed, got %v", err)
	}
}

func TestClient_ExchangeCancelled(t *testing.T) {
	p := newFakeProvider(t)
	c, _ := NewClient(p.clientConfig(), clock.Real())

	_, st, _ := c.Begin("/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Exchange(ctx, "good-code", st); err == nil {
		t.Error("Expected exchange to fail under a cancelled context")
	}
}

func TestNewClient_Config(t *testing.T) {
	p := newFakeProvider(t)

	cfg := p.clientConfig()
	cfg.ClientSecret = ""
	if _, err := NewClient(cfg, clock.Real()); err == nil {
		t.Error("Expected error for missing client secret")
	}

	cfg = p.clientConfig()
	cfg.UserinfoURL = ""
	if _, err := NewClient(cfg, clock.Real()); err == nil {
		t.Error("Expected error for missing userinfo URL")
	}
}
