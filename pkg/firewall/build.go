package firewall

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/palisadeproject/palisade/pkg/access"
	"github.com/palisadeproject/palisade/pkg/authenticator"
	"github.com/palisadeproject/palisade/pkg/clock"
	"github.com/palisadeproject/palisade/pkg/config"
	"github.com/palisadeproject/palisade/pkg/oauth"
	"github.com/palisadeproject/palisade/pkg/session"
	"github.com/palisadeproject/palisade/pkg/token"
	"github.com/palisadeproject/palisade/pkg/user"
)

// Build assembles a ready-to-serve Dispatcher from validated
// configuration. Callers must run cfg.Validate and cfg.Defaults first;
// Build still fails on anything it cannot construct.
func Build(cfg *config.Config, clk clock.Clock, logger *slog.Logger, registerer prometheus.Registerer) (*Dispatcher, error) {
	if clk == nil {
		clk = clock.Real()
	}

	policy, err := buildPolicy(cfg)
	if err != nil {
		return nil, err
	}

	users, err := buildUsers(cfg)
	if err != nil {
		return nil, err
	}

	defs := make([]*Definition, 0, len(cfg.Firewalls))
	for _, fw := range cfg.Firewalls {
		def, err := buildFirewall(cfg, fw, clk, users)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	opts := []Option{}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	if registerer != nil {
		opts = append(opts, WithMetrics(NewMetrics(registerer)))
	}
	return NewDispatcher(defs, policy, opts...)
}

func buildPolicy(cfg *config.Config) (*access.Policy, error) {
	defaultDecision := access.Deny
	var specs []access.RuleSpec

	if cfg.Policy != nil {
		if cfg.Policy.Spec.DefaultDecision == "allow" {
			defaultDecision = access.Allow
		}
		for _, r := range cfg.Policy.Spec.Rules {
			specs = append(specs, access.RuleSpec{
				Pattern:    r.Pattern,
				Anonymous:  r.Anonymous,
				Roles:      r.Roles,
				Expression: r.Expression,
			})
		}
	}

	policy, err := access.NewPolicy(specs, defaultDecision)
	if err != nil {
		return nil, fmt.Errorf("build access policy: %w", err)
	}
	return policy, nil
}

func buildUsers(cfg *config.Config) (user.Provider, error) {
	users := user.NewMemoryProvider()
	if cfg.Directory == nil {
		return users, nil
	}
	for _, u := range cfg.Directory.Spec.Users {
		_, err := users.Add(user.Record{
			Key:          u.Key,
			Identifier:   u.Identifier,
			PasswordHash: u.PasswordHash,
			Roles:        u.Roles,
			Provider:     u.Provider,
			ProviderID:   u.ProviderID,
		})
		if err != nil {
			return nil, fmt.Errorf("seed user directory: %w", err)
		}
	}
	return users, nil
}

func buildFirewall(cfg *config.Config, fw *config.Firewall, clk clock.Clock, users user.Provider) (*Definition, error) {
	name := fw.Metadata.Name
	spec := fw.Spec

	def := &Definition{
		Name:          name,
		Pattern:       spec.Pattern,
		Users:         users,
		Passwords:     user.NewBcryptChecker(),
		CSRF:          session.NewCSRFChecker(),
		LookupTimeout: spec.LookupTimeout.Duration(),
	}

	var mgr *session.Manager
	if spec.Session != nil {
		store := session.NewMemoryStore(clk, spec.Session.Lifetime.Duration())
		mgr = session.NewManager(store, spec.Session.CookieName, spec.Session.Lifetime.Duration(), spec.Session.Secure)
		def.Sessions = mgr
	}

	for _, strategy := range spec.Order {
		var (
			auth authenticator.Authenticator
			err  error
		)
		switch strategy {
		case config.StrategyBearer:
			auth, err = buildBearer(name, spec.Bearer, clk)
		case config.StrategyForm:
			auth, err = buildForm(name, spec.Form, mgr)
		case config.StrategyOAuth:
			auth, err = buildOAuth(cfg, name, spec.OAuth, clk, mgr)
			if err == nil {
				def.AutoProvision = spec.OAuth.AutoProvision
				def.ProvisionRoles = spec.OAuth.ProvisionRoles
			}
		default:
			err = fmt.Errorf("firewall %q: unknown strategy %q", name, strategy)
		}
		if err != nil {
			return nil, err
		}
		def.Authenticators = append(def.Authenticators, auth)
	}

	return def, nil
}

func buildBearer(name string, spec *config.BearerSpec, clk clock.Clock) (authenticator.Authenticator, error) {
	key := os.Getenv(spec.KeySecretEnv)
	if key == "" {
		return nil, fmt.Errorf("firewall %q: environment variable %s is not set", name, spec.KeySecretEnv)
	}
	var opts []token.Option
	if spec.Issuer != "" {
		opts = append(opts, token.WithIssuer(spec.Issuer))
	}
	verifier, err := token.NewVerifier([]byte(key), spec.Algorithm, clk, opts...)
	if err != nil {
		return nil, fmt.Errorf("firewall %q: build token verifier: %w", name, err)
	}
	return authenticator.NewBearer(verifier), nil
}

func buildForm(name string, spec *config.FormSpec, mgr *session.Manager) (authenticator.Authenticator, error) {
	form, err := authenticator.NewForm(authenticator.FormConfig{
		LoginPath:     spec.LoginPath,
		LogoutPath:    spec.LogoutPath,
		DefaultTarget: spec.DefaultTarget,
		FailureTarget: spec.FailureTarget,
	}, mgr)
	if err != nil {
		return nil, fmt.Errorf("firewall %q: build form strategy: %w", name, err)
	}
	return form, nil
}

func buildOAuth(cfg *config.Config, name string, spec *config.OAuthSpec, clk clock.Clock, mgr *session.Manager) (authenticator.Authenticator, error) {
	provider := cfg.GetProvider(spec.ProviderRef)
	if provider == nil {
		return nil, fmt.Errorf("firewall %q: unknown OAuthProvider %q", name, spec.ProviderRef)
	}
	secret := os.Getenv(provider.Spec.ClientSecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("firewall %q: environment variable %s is not set", name, provider.Spec.ClientSecretEnv)
	}

	client, err := oauth.NewClient(oauth.Config{
		Provider:     provider.Metadata.Name,
		ClientID:     provider.Spec.ClientID,
		ClientSecret: secret,
		AuthURL:      provider.Spec.AuthURL,
		TokenURL:     provider.Spec.TokenURL,
		UserinfoURL:  provider.Spec.UserinfoURL,
		RedirectURL:  provider.Spec.RedirectURL,
		Scopes:       provider.Spec.Scopes,
		PKCE:         provider.Spec.PKCE,
	}, clk)
	if err != nil {
		return nil, fmt.Errorf("firewall %q: build oauth client: %w", name, err)
	}

	if mgr == nil {
		return nil, fmt.Errorf("firewall %q: oauth strategy requires a session", name)
	}
	states := oauth.NewSessionStateStore(mgr.Store(), clk, 0)

	auth, err := authenticator.NewOAuth(authenticator.OAuthConfig{
		CallbackPath:  spec.CallbackPath,
		DefaultTarget: spec.DefaultTarget,
		FailureTarget: spec.FailureTarget,
	}, client, states, mgr)
	if err != nil {
		return nil, fmt.Errorf("firewall %q: build oauth strategy: %w", name, err)
	}
	return auth, nil
}
