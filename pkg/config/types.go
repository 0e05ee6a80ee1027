// Package config loads and validates multi-document YAML configuration
// for the authentication pipeline. Any validation failure is fatal at
// startup; a half-valid pipeline must never serve traffic.
package config

import "time"

const (
	APIVersion = "palisade.io/v1alpha1"

	KindFirewall      = "Firewall"
	KindAccessPolicy  = "AccessPolicy"
	KindOAuthProvider = "OAuthProvider"
	KindUserDirectory = "UserDirectory"
)

// Strategy names usable in a firewall's order list.
const (
	StrategyBearer = "bearer"
	StrategyForm   = "form"
	StrategyOAuth  = "oauth"
)

// TypeMeta describes the API version and kind of a resource.
type TypeMeta struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Kind       string `yaml:"kind" json:"kind"`
}

// ObjectMeta contains metadata that all resources have.
type ObjectMeta struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Firewall configures one dispatch scope and its authenticator chain.
type Firewall struct {
	TypeMeta `yaml:",inline" json:",inline"`
	Metadata ObjectMeta   `yaml:"metadata" json:"metadata"`
	Spec     FirewallSpec `yaml:"spec" json:"spec"`
}

// FirewallSpec defines one firewall.
type FirewallSpec struct {
	// Pattern is the anchored path regex this firewall claims.
	Pattern string `yaml:"pattern" json:"pattern"`

	// Order lists the enabled strategies in chain order. The first entry
	// is the firewall's entry point for anonymous denials. Defaults to
	// every configured strategy in bearer, form, oauth order.
	Order []string `yaml:"order,omitempty" json:"order,omitempty"`

	// LookupTimeout bounds user-store lookups for this firewall.
	LookupTimeout Duration `yaml:"lookupTimeout,omitempty" json:"lookupTimeout,omitempty"`

	Session *SessionSpec `yaml:"session,omitempty" json:"session,omitempty"`
	Bearer  *BearerSpec  `yaml:"bearer,omitempty" json:"bearer,omitempty"`
	Form    *FormSpec    `yaml:"form,omitempty" json:"form,omitempty"`
	OAuth   *OAuthSpec   `yaml:"oauth,omitempty" json:"oauth,omitempty"`
}

// SessionSpec configures the cookie session for a firewall.
type SessionSpec struct {
	CookieName string   `yaml:"cookieName,omitempty" json:"cookieName,omitempty"`
	Lifetime   Duration `yaml:"lifetime,omitempty" json:"lifetime,omitempty"`
	Secure     bool     `yaml:"secure,omitempty" json:"secure,omitempty"`
}

// BearerSpec configures the bearer-token strategy. The signing key is
// never stored in the file; KeySecretEnv names the environment variable
// holding it.
type BearerSpec struct {
	Algorithm    string `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
	KeySecretEnv string `yaml:"keySecretEnv" json:"keySecretEnv"`
	Issuer       string `yaml:"issuer,omitempty" json:"issuer,omitempty"`
}

// FormSpec configures the form-login strategy.
type FormSpec struct {
	LoginPath     string `yaml:"loginPath" json:"loginPath"`
	LogoutPath    string `yaml:"logoutPath,omitempty" json:"logoutPath,omitempty"`
	DefaultTarget string `yaml:"defaultTarget,omitempty" json:"defaultTarget,omitempty"`
	FailureTarget string `yaml:"failureTarget,omitempty" json:"failureTarget,omitempty"`
}

// OAuthSpec configures the OAuth strategy for a firewall, referencing an
// OAuthProvider resource by name.
type OAuthSpec struct {
	ProviderRef    string   `yaml:"providerRef" json:"providerRef"`
	CallbackPath   string   `yaml:"callbackPath" json:"callbackPath"`
	DefaultTarget  string   `yaml:"defaultTarget,omitempty" json:"defaultTarget,omitempty"`
	FailureTarget  string   `yaml:"failureTarget,omitempty" json:"failureTarget,omitempty"`
	AutoProvision  bool     `yaml:"autoProvision,omitempty" json:"autoProvision,omitempty"`
	ProvisionRoles []string `yaml:"provisionRoles,omitempty" json:"provisionRoles,omitempty"`
}

// OAuthProvider configures an external identity provider. The client
// secret lives in the environment variable named by ClientSecretEnv.
type OAuthProvider struct {
	TypeMeta `yaml:",inline" json:",inline"`
	Metadata ObjectMeta        `yaml:"metadata" json:"metadata"`
	Spec     OAuthProviderSpec `yaml:"spec" json:"spec"`
}

// OAuthProviderSpec defines the provider endpoints and credentials.
type OAuthProviderSpec struct {
	ClientID        string   `yaml:"clientID" json:"clientID"`
	ClientSecretEnv string   `yaml:"clientSecretEnv" json:"clientSecretEnv"`
	AuthURL         string   `yaml:"authURL" json:"authURL"`
	TokenURL        string   `yaml:"tokenURL" json:"tokenURL"`
	UserinfoURL     string   `yaml:"userinfoURL" json:"userinfoURL"`
	RedirectURL     string   `yaml:"redirectURL" json:"redirectURL"`
	Scopes          []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	PKCE            bool     `yaml:"pkce,omitempty" json:"pkce,omitempty"`
}

// UserDirectory seeds the in-memory user store.
type UserDirectory struct {
	TypeMeta `yaml:",inline" json:",inline"`
	Metadata ObjectMeta        `yaml:"metadata" json:"metadata"`
	Spec     UserDirectorySpec `yaml:"spec" json:"spec"`
}

// UserDirectorySpec lists the seeded accounts.
type UserDirectorySpec struct {
	Users []UserSpec `yaml:"users" json:"users"`
}

// UserSpec is one seeded account. PasswordHash is a bcrypt hash, never a
// plaintext password.
type UserSpec struct {
	Key          string   `yaml:"key,omitempty" json:"key,omitempty"`
	Identifier   string   `yaml:"identifier" json:"identifier"`
	PasswordHash string   `yaml:"passwordHash,omitempty" json:"passwordHash,omitempty"`
	Roles        []string `yaml:"roles" json:"roles"`
	Provider     string   `yaml:"provider,omitempty" json:"provider,omitempty"`
	ProviderID   string   `yaml:"providerID,omitempty" json:"providerID,omitempty"`
}

// AccessPolicy configures the ordered access-control rules.
type AccessPolicy struct {
	TypeMeta `yaml:",inline" json:",inline"`
	Metadata ObjectMeta       `yaml:"metadata" json:"metadata"`
	Spec     AccessPolicySpec `yaml:"spec" json:"spec"`
}

// AccessPolicySpec defines the rule list and the fallback decision.
type AccessPolicySpec struct {
	// DefaultDecision applies when no rule matches: "allow" or "deny".
	// Empty means deny.
	DefaultDecision string `yaml:"defaultDecision,omitempty" json:"defaultDecision,omitempty"`

	Rules []RuleSpec `yaml:"rules" json:"rules"`
}

// RuleSpec is one access rule. Exactly one of anonymous, roles or
// expression must be set.
type RuleSpec struct {
	Pattern    string   `yaml:"pattern" json:"pattern"`
	Anonymous  bool     `yaml:"anonymous,omitempty" json:"anonymous,omitempty"`
	Roles      []string `yaml:"roles,omitempty" json:"roles,omitempty"`
	Expression string   `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// Duration wraps time.Duration for YAML/JSON marshaling.
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
