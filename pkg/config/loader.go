package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all loaded configuration resources.
type Config struct {
	Firewalls []*Firewall
	Policy    *AccessPolicy
	Providers map[string]*OAuthProvider
	Directory *UserDirectory
}

// Load reads configuration from a file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
// Supports multi-document YAML (separated by ---).
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Providers: make(map[string]*OAuthProvider),
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))

	for {
		var raw map[string]any
		if err := decoder.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode YAML document: %w", err)
		}

		if raw == nil {
			continue
		}

		kind, _ := raw["kind"].(string)
		apiVersion, _ := raw["apiVersion"].(string)

		if apiVersion != "" && apiVersion != APIVersion {
			return nil, fmt.Errorf("unsupported apiVersion: %s (expected %s)", apiVersion, APIVersion)
		}

		docBytes, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to re-marshal document: %w", err)
		}

		switch kind {
		case KindFirewall:
			var fw Firewall
			if err := yaml.Unmarshal(docBytes, &fw); err != nil {
				return nil, fmt.Errorf("failed to parse Firewall %q: %w", fw.Metadata.Name, err)
			}
			cfg.Firewalls = append(cfg.Firewalls, &fw)

		case KindAccessPolicy:
			var policy AccessPolicy
			if err := yaml.Unmarshal(docBytes, &policy); err != nil {
				return nil, fmt.Errorf("failed to parse AccessPolicy: %w", err)
			}
			if cfg.Policy != nil {
				return nil, fmt.Errorf("multiple AccessPolicy resources found")
			}
			cfg.Policy = &policy

		case KindOAuthProvider:
			var provider OAuthProvider
			if err := yaml.Unmarshal(docBytes, &provider); err != nil {
				return nil, fmt.Errorf("failed to parse OAuthProvider: %w", err)
			}
			name := provider.Metadata.Name
			if name == "" {
				return nil, fmt.Errorf("OAuthProvider must have metadata.name")
			}
			if _, exists := cfg.Providers[name]; exists {
				return nil, fmt.Errorf("duplicate OAuthProvider name: %s", name)
			}
			cfg.Providers[name] = &provider

		case KindUserDirectory:
			var dir UserDirectory
			if err := yaml.Unmarshal(docBytes, &dir); err != nil {
				return nil, fmt.Errorf("failed to parse UserDirectory: %w", err)
			}
			if cfg.Directory != nil {
				return nil, fmt.Errorf("multiple UserDirectory resources found")
			}
			cfg.Directory = &dir

		case "":
			return nil, fmt.Errorf("document missing 'kind' field")

		default:
			return nil, fmt.Errorf("unknown kind: %s", kind)
		}
	}

	return cfg, nil
}

// Validate checks the configuration for errors. Secret material named by
// the config must be present in the environment; a pipeline missing a
// signing key or client secret refuses to start.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Firewalls))
	for _, fw := range c.Firewalls {
		name := fw.Metadata.Name
		if name == "" {
			return fmt.Errorf("Firewall must have metadata.name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate Firewall name: %s", name)
		}
		seen[name] = true

		if err := validatePattern(fw.Spec.Pattern); err != nil {
			return fmt.Errorf("Firewall %q: %w", name, err)
		}

		if err := validateStrategies(fw); err != nil {
			return err
		}

		if fw.Spec.OAuth != nil {
			if _, ok := c.Providers[fw.Spec.OAuth.ProviderRef]; !ok {
				return fmt.Errorf("Firewall %q references unknown OAuthProvider %q", name, fw.Spec.OAuth.ProviderRef)
			}
		}
	}

	if c.Policy != nil {
		if err := c.validatePolicy(); err != nil {
			return err
		}
	}

	if c.Directory != nil {
		if err := c.validateDirectory(); err != nil {
			return err
		}
	}

	for name, provider := range c.Providers {
		spec := provider.Spec
		if spec.ClientID == "" {
			return fmt.Errorf("OAuthProvider %q must have spec.clientID", name)
		}
		if spec.AuthURL == "" || spec.TokenURL == "" || spec.UserinfoURL == "" || spec.RedirectURL == "" {
			return fmt.Errorf("OAuthProvider %q must have authURL, tokenURL, userinfoURL and redirectURL", name)
		}
		if spec.ClientSecretEnv == "" {
			return fmt.Errorf("OAuthProvider %q must have spec.clientSecretEnv", name)
		}
		if os.Getenv(spec.ClientSecretEnv) == "" {
			return fmt.Errorf("OAuthProvider %q: environment variable %s is not set", name, spec.ClientSecretEnv)
		}
	}

	return nil
}

func validatePattern(pattern string) error {
	if !strings.HasPrefix(pattern, "^") {
		return fmt.Errorf("pattern %q must be anchored with '^'", pattern)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return nil
}

func validateStrategies(fw *Firewall) error {
	name := fw.Metadata.Name
	spec := fw.Spec

	for _, s := range spec.Order {
		switch s {
		case StrategyBearer:
			if spec.Bearer == nil {
				return fmt.Errorf("Firewall %q: order lists bearer but spec.bearer is missing", name)
			}
		case StrategyForm:
			if spec.Form == nil {
				return fmt.Errorf("Firewall %q: order lists form but spec.form is missing", name)
			}
		case StrategyOAuth:
			if spec.OAuth == nil {
				return fmt.Errorf("Firewall %q: order lists oauth but spec.oauth is missing", name)
			}
		default:
			return fmt.Errorf("Firewall %q: unknown strategy %q in order", name, s)
		}
	}

	if spec.Bearer != nil {
		if spec.Bearer.KeySecretEnv == "" {
			return fmt.Errorf("Firewall %q: bearer requires keySecretEnv", name)
		}
		if os.Getenv(spec.Bearer.KeySecretEnv) == "" {
			return fmt.Errorf("Firewall %q: environment variable %s is not set", name, spec.Bearer.KeySecretEnv)
		}
	}

	if spec.Form != nil {
		if spec.Form.LoginPath == "" {
			return fmt.Errorf("Firewall %q: form requires loginPath", name)
		}
		if spec.Session == nil {
			return fmt.Errorf("Firewall %q: form strategy requires a session", name)
		}
	}

	if spec.OAuth != nil {
		if spec.OAuth.ProviderRef == "" || spec.OAuth.CallbackPath == "" {
			return fmt.Errorf("Firewall %q: oauth requires providerRef and callbackPath", name)
		}
		if spec.Session == nil {
			return fmt.Errorf("Firewall %q: oauth strategy requires a session", name)
		}
		if spec.OAuth.AutoProvision && len(spec.OAuth.ProvisionRoles) == 0 {
			return fmt.Errorf("Firewall %q: autoProvision requires provisionRoles", name)
		}
	}

	// Claim-overlap at the config level: the form login endpoint and the
	// OAuth callback must be distinct paths, or both strategies would
	// claim the same request.
	if spec.Form != nil && spec.OAuth != nil && spec.Form.LoginPath == spec.OAuth.CallbackPath {
		return fmt.Errorf("Firewall %q: form loginPath and oauth callbackPath collide on %q", name, spec.Form.LoginPath)
	}

	return nil
}

func (c *Config) validatePolicy() error {
	spec := c.Policy.Spec
	switch spec.DefaultDecision {
	case "", "allow", "deny":
	default:
		return fmt.Errorf("AccessPolicy: defaultDecision must be allow or deny, got %q", spec.DefaultDecision)
	}

	for i, rule := range spec.Rules {
		if err := validatePattern(rule.Pattern); err != nil {
			return fmt.Errorf("AccessPolicy rule %d: %w", i, err)
		}
		markers := 0
		if rule.Anonymous {
			markers++
		}
		if len(rule.Roles) > 0 {
			markers++
		}
		if rule.Expression != "" {
			markers++
		}
		if markers != 1 {
			return fmt.Errorf("AccessPolicy rule %d (%s): exactly one of anonymous, roles or expression is required", i, rule.Pattern)
		}
		for _, role := range rule.Roles {
			if role == "" {
				return fmt.Errorf("AccessPolicy rule %d (%s): empty role name", i, rule.Pattern)
			}
		}
	}
	return nil
}

func (c *Config) validateDirectory() error {
	identifiers := make(map[string]bool)
	for i, u := range c.Directory.Spec.Users {
		if u.Identifier == "" {
			return fmt.Errorf("UserDirectory user %d must have an identifier", i)
		}
		if identifiers[u.Identifier] {
			return fmt.Errorf("UserDirectory: duplicate identifier %q", u.Identifier)
		}
		identifiers[u.Identifier] = true
		if len(u.Roles) == 0 {
			return fmt.Errorf("UserDirectory user %q must have at least one role", u.Identifier)
		}
		if (u.Provider == "") != (u.ProviderID == "") {
			return fmt.Errorf("UserDirectory user %q: provider and providerID must be set together", u.Identifier)
		}
	}
	return nil
}

// FirewallFor returns a firewall by name.
func (c *Config) FirewallFor(name string) *Firewall {
	for _, fw := range c.Firewalls {
		if fw.Metadata.Name == name {
			return fw
		}
	}
	return nil
}

// GetProvider returns an OAuth provider by name.
func (c *Config) GetProvider(name string) *OAuthProvider {
	return c.Providers[name]
}

// Defaults applies default values to the configuration.
func (c *Config) Defaults() {
	for _, fw := range c.Firewalls {
		spec := &fw.Spec
		if spec.Bearer != nil && spec.Bearer.Algorithm == "" {
			spec.Bearer.Algorithm = "HS256"
		}
		if spec.Session != nil && spec.Session.Lifetime == 0 {
			spec.Session.Lifetime = Duration(24 * time.Hour)
		}
		if len(spec.Order) == 0 {
			if spec.Bearer != nil {
				spec.Order = append(spec.Order, StrategyBearer)
			}
			if spec.Form != nil {
				spec.Order = append(spec.Order, StrategyForm)
			}
			if spec.OAuth != nil {
				spec.Order = append(spec.Order, StrategyOAuth)
			}
		}
	}
}

// UnmarshalYAML implements custom YAML unmarshaling for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements custom YAML marshaling for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	if d == 0 {
		return "", nil
	}
	return time.Duration(d).String(), nil
}
