package config

import (
	"strings"
	"testing"
	"time"
)

const fullConfig = `
apiVersion: palisade.io/v1alpha1
kind: Firewall
metadata:
  name: api
spec:
  pattern: "^/api"
  bearer:
    keySecretEnv: TEST_BEARER_KEY
    issuer: palisade
---
apiVersion: palisade.io/v1alpha1
kind: Firewall
metadata:
  name: web
spec:
  pattern: "^/"
  lookupTimeout: 2s
  session:
    cookieName: app_session
    lifetime: 12h
  form:
    loginPath: /login
    logoutPath: /logout
    defaultTarget: /dashboard
  oauth:
    providerRef: github
    callbackPath: /oauth/callback
    autoProvision: true
    provisionRoles: [ROLE_USER]
---
apiVersion: palisade.io/v1alpha1
kind: OAuthProvider
metadata:
  name: github
spec:
  clientID: client-id
  clientSecretEnv: TEST_GITHUB_SECRET
  authURL: https://github.example/authorize
  tokenURL: https://github.example/token
  userinfoURL: https://github.example/user
  redirectURL: https://app.example/oauth/callback
  scopes: [user:email]
  pkce: true
---
apiVersion: palisade.io/v1alpha1
kind: UserDirectory
metadata:
  name: users
spec:
  users:
    - key: "42"
      identifier: a@b.com
      passwordHash: "$2a$10$abcdefghijklmnopqrstuv"
      roles: [ROLE_USER]
---
apiVersion: palisade.io/v1alpha1
kind: AccessPolicy
metadata:
  name: policy
spec:
  defaultDecision: deny
  rules:
    - pattern: "^/login"
      anonymous: true
    - pattern: "^/api"
      roles: [ROLE_USER]
    - pattern: "^/admin"
      expression: "principal.authenticated && 'ROLE_ADMIN' in principal.roles"
`

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("TEST_BEARER_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("TEST_GITHUB_SECRET", "client-secret")
}

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(cfg.Firewalls) != 2 {
		t.Fatalf("Firewalls: expected 2, got %d", len(cfg.Firewalls))
	}

	api := cfg.FirewallFor("api")
	if api == nil {
		t.Fatal("Expected an api firewall")
	}
	if api.Spec.Pattern != "^/api" {
		t.Errorf("Pattern: expected ^/api, got %q", api.Spec.Pattern)
	}
	if api.Spec.Bearer == nil || api.Spec.Bearer.KeySecretEnv != "TEST_BEARER_KEY" {
		t.Errorf("Bearer: got %+v", api.Spec.Bearer)
	}

	web := cfg.FirewallFor("web")
	if web == nil {
		t.Fatal("Expected a web firewall")
	}
	if web.Spec.LookupTimeout.Duration() != 2*time.Second {
		t.Errorf("LookupTimeout: expected 2s, got %v", web.Spec.LookupTimeout.Duration())
	}
	if web.Spec.Session == nil || web.Spec.Session.CookieName != "app_session" {
		t.Errorf("Session: got %+v", web.Spec.Session)
	}
	if web.Spec.Session.Lifetime.Duration() != 12*time.Hour {
		t.Errorf("Session lifetime: expected 12h, got %v", web.Spec.Session.Lifetime.Duration())
	}
	if web.Spec.Form == nil || web.Spec.Form.LoginPath != "/login" {
		t.Errorf("Form: got %+v", web.Spec.Form)
	}
	if web.Spec.OAuth == nil || web.Spec.OAuth.ProviderRef != "github" {
		t.Errorf("OAuth: got %+v", web.Spec.OAuth)
	}
	if !web.Spec.OAuth.AutoProvision || len(web.Spec.OAuth.ProvisionRoles) != 1 {
		t.Errorf("AutoProvision: got %+v", web.Spec.OAuth)
	}

	provider := cfg.GetProvider("github")
	if provider == nil {
		t.Fatal("Expected a github provider")
	}
	if !provider.Spec.PKCE || provider.Spec.ClientID != "client-id" {
		t.Errorf("Provider spec: got %+v", provider.Spec)
	}

	if cfg.Directory == nil || len(cfg.Directory.Spec.Users) != 1 {
		t.Fatalf("Directory: got %+v", cfg.Directory)
	}
	if cfg.Directory.Spec.Users[0].Key != "42" {
		t.Errorf("User key: expected 42, got %q", cfg.Directory.Spec.Users[0].Key)
	}

	if cfg.Policy == nil || len(cfg.Policy.Spec.Rules) != 3 {
		t.Fatalf("Policy: got %+v", cfg.Policy)
	}
	if cfg.Policy.Spec.DefaultDecision != "deny" {
		t.Errorf("DefaultDecision: expected deny, got %q", cfg.Policy.Spec.DefaultDecision)
	}
}

func TestParse_UnknownKind(t *testing.T) {
	_, err := Parse([]byte("kind: Mystery\napiVersion: palisade.io/v1alpha1\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Errorf("Expected an unknown-kind error, got %v", err)
	}
}

func TestParse_MissingKind(t *testing.T) {
	_, err := Parse([]byte("metadata:\n  name: x\n"))
	if err == nil || !strings.Contains(err.Error(), "missing 'kind'") {
		t.Errorf("Expected a missing-kind error, got %v", err)
	}
}

func TestParse_UnsupportedAPIVersion(t *testing.T) {
	_, err := Parse([]byte("kind: Firewall\napiVersion: palisade.io/v2\n"))
	if err == nil || !strings.Contains(err.Error(), "unsupported apiVersion") {
		t.Errorf("Expected an apiVersion error, got %v", err)
	}
}

func TestParse_MultipleAccessPolicies(t *testing.T) {
	doc := `
kind: AccessPolicy
metadata:
  name: a
---
kind: AccessPolicy
metadata:
  name: b
`
	_, err := Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "multiple AccessPolicy") {
		t.Errorf("Expected a multiple-policy error, got %v", err)
	}
}

func TestValidate_FullConfig(t *testing.T) {
	setSecrets(t)
	cfg, err := Parse([]byte(fullConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestValidate_MissingSecretRefusesStartup(t *testing.T) {
	t.Setenv("TEST_GITHUB_SECRET", "client-secret")
	// TEST_BEARER_KEY deliberately unset.
	t.Setenv("TEST_BEARER_KEY", "")

	cfg, err := Parse([]byte(fullConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "TEST_BEARER_KEY") {
		t.Errorf("Expected a missing-secret error, got %v", err)
	}
}

func validateFirewall(t *testing.T, doc string) error {
	t.Helper()
	setSecrets(t)
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return cfg.Validate()
}

func TestValidate_UnanchoredPattern(t *testing.T) {
	err := validateFirewall(t, `
kind: Firewall
metadata:
  name: api
spec:
  pattern: "/api"
`)
	if err == nil || !strings.Contains(err.Error(), "anchored") {
		t.Errorf("Expected an anchoring error, got %v", err)
	}
}

func TestValidate_DuplicateFirewallNames(t *testing.T) {
	err := validateFirewall(t, `
kind: Firewall
metadata:
  name: api
spec:
  pattern: "^/api"
---
kind: Firewall
metadata:
  name: api
spec:
  pattern: "^/v2"
`)
	if err == nil || !strings.Contains(err.Error(), "duplicate Firewall name") {
		t.Errorf("Expected a duplicate-name error, got %v", err)
	}
}

func TestValidate_FormWithoutSession(t *testing.T) {
	err := validateFirewall(t, `
kind: Firewall
metadata:
  name: web
spec:
  pattern: "^/"
  form:
    loginPath: /login
`)
	if err == nil || !strings.Contains(err.Error(), "requires a session") {
		t.Errorf("Expected a missing-session error, got %v", err)
	}
}

func TestValidate_LoginAndCallbackCollision(t *testing.T) {
	err := validateFirewall(t, `
kind: Firewall
metadata:
  name: web
spec:
  pattern: "^/"
  session:
    cookieName: s
  form:
    loginPath: /login
  oauth:
    providerRef: github
    callbackPath: /login
---
kind: OAuthProvider
metadata:
  name: github
spec:
  clientID: id
  clientSecretEnv: TEST_GITHUB_SECRET
  authURL: https://x/a
  tokenURL: https://x/t
  userinfoURL: https://x/u
  redirectURL: https://x/cb
`)
	if err == nil || !strings.Contains(err.Error(), "collide") {
		t.Errorf("Expected a collision error, got %v", err)
	}
}

func TestValidate_UnknownProviderRef(t *testing.T) {
	err := validateFirewall(t, `
kind: Firewall
metadata:
  name: web
spec:
  pattern: "^/"
  session:
    cookieName: s
  oauth:
    providerRef: nowhere
    callbackPath: /cb
`)
	if err == nil || !strings.Contains(err.Error(), "unknown OAuthProvider") {
		t.Errorf("Expected an unknown-provider error, got %v", err)
	}
}

func TestValidate_UnknownOrderStrategy(t *testing.T) {
	err := validateFirewall(t, `
kind: Firewall
metadata:
  name: api
spec:
  pattern: "^/api"
  order: [basic]
`)
	if err == nil || !strings.Contains(err.Error(), "unknown strategy") {
		t.Errorf("Expected an unknown-strategy error, got %v", err)
	}
}

func TestValidate_AutoProvisionRequiresRoles(t *testing.T) {
	err := validateFirewall(t, `
kind: Firewall
metadata:
  name: web
spec:
  pattern: "^/"
  session:
    cookieName: s
  oauth:
    providerRef: github
    callbackPath: /cb
    autoProvision: true
---
kind: OAuthProvider
metadata:
  name: github
spec:
  clientID: id
  clientSecretEnv: TEST_GITHUB_SECRET
  authURL: https://x/a
  tokenURL: https://x/t
  userinfoURL: https://x/u
  redirectURL: https://x/cb
`)
	if err == nil || !strings.Contains(err.Error(), "provisionRoles") {
		t.Errorf("Expected a provisionRoles error, got %v", err)
	}
}

func TestValidate_RuleMarkers(t *testing.T) {
	err := validateFirewall(t, `
kind: AccessPolicy
metadata:
  name: policy
spec:
  rules:
    - pattern: "^/x"
      anonymous: true
      roles: [ROLE_USER]
`)
	if err == nil || !strings.Contains(err.Error(), "exactly one") {
		t.Errorf("Expected a marker error, got %v", err)
	}
}

func TestValidate_DirectoryDuplicateIdentifier(t *testing.T) {
	err := validateFirewall(t, `
kind: UserDirectory
metadata:
  name: users
spec:
  users:
    - identifier: a@b.com
      roles: [ROLE_USER]
    - identifier: a@b.com
      roles: [ROLE_USER]
`)
	if err == nil || !strings.Contains(err.Error(), "duplicate identifier") {
		t.Errorf("Expected a duplicate-identifier error, got %v", err)
	}
}

func TestValidate_DirectoryUserWithoutRoles(t *testing.T) {
	err := validateFirewall(t, `
kind: UserDirectory
metadata:
  name: users
spec:
  users:
    - identifier: a@b.com
`)
	if err == nil || !strings.Contains(err.Error(), "at least one role") {
		t.Errorf("Expected an empty-roles error, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cfg.Defaults()

	api := cfg.FirewallFor("api")
	if api.Spec.Bearer.Algorithm != "HS256" {
		t.Errorf("Algorithm: expected HS256 default, got %q", api.Spec.Bearer.Algorithm)
	}
	if len(api.Spec.Order) != 1 || api.Spec.Order[0] != StrategyBearer {
		t.Errorf("Order: expected [bearer], got %v", api.Spec.Order)
	}

	web := cfg.FirewallFor("web")
	if len(web.Spec.Order) != 2 || web.Spec.Order[0] != StrategyForm || web.Spec.Order[1] != StrategyOAuth {
		t.Errorf("Order: expected [form oauth], got %v", web.Spec.Order)
	}
	// The explicit 12h lifetime survives defaulting.
	if web.Spec.Session.Lifetime.Duration() != 12*time.Hour {
		t.Errorf("Lifetime: expected 12h, got %v", web.Spec.Session.Lifetime.Duration())
	}
}

func TestDuration_Unmarshal(t *testing.T) {
	var fw Firewall
	doc := `
kind: Firewall
metadata:
  name: api
spec:
  pattern: "^/api"
  lookupTimeout: 1500ms
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	fw = *cfg.Firewalls[0]
	if fw.Spec.LookupTimeout.Duration() != 1500*time.Millisecond {
		t.Errorf("LookupTimeout: expected 1.5s, got %v", fw.Spec.LookupTimeout.Duration())
	}
}
