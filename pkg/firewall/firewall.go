// Package firewall binds URL-pattern scopes to ordered authenticator
// chains and drives the per-request authentication pipeline.
//
// Per request the phases run strictly in order: dispatch, authenticate,
// badge verification, principal resolution, access control. Definitions
// are validated once at startup and immutable afterwards, so concurrent
// requests share them without locking.
package firewall

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/palisadeproject/palisade/pkg/authenticator"
	"github.com/palisadeproject/palisade/pkg/session"
	"github.com/palisadeproject/palisade/pkg/user"
)

// DefaultLookupTimeout bounds user-provider lookups when a definition
// does not configure one.
const DefaultLookupTimeout = 5 * time.Second

// Definition is one firewall: a path scope, an ordered authenticator
// chain, and the collaborators needed to check badges and resolve
// principals.
type Definition struct {
	// Name identifies the firewall for logging and metrics.
	Name string

	// Pattern is an anchored regular expression matched against request
	// paths.
	Pattern string

	// Authenticators are tried in order; the first whose Supports claims
	// the request is the active authenticator.
	Authenticators []authenticator.Authenticator

	// Users resolves identity badges into accounts. Required unless the
	// chain is bearer-only or empty.
	Users user.Provider

	// Passwords checks password badges. Required with a form strategy.
	Passwords user.PasswordChecker

	// CSRF checks CSRF badges. Required with a form strategy.
	CSRF session.CSRFChecker

	// Sessions enables session restore for returning browsers.
	Sessions *session.Manager

	// AutoProvision creates accounts on first OAuth login, with
	// ProvisionRoles attached.
	AutoProvision  bool
	ProvisionRoles []string

	// LookupTimeout bounds each user-provider call. Zero means
	// DefaultLookupTimeout.
	LookupTimeout time.Duration

	re *regexp.Regexp
}

// compile validates the definition and prepares it for dispatch.
func (d *Definition) compile() error {
	if d.Name == "" {
		return errors.New("firewall must have a name")
	}
	if !strings.HasPrefix(d.Pattern, "^") {
		return fmt.Errorf("firewall %q: pattern %q must be anchored with '^'", d.Name, d.Pattern)
	}
	re, err := regexp.Compile(d.Pattern)
	if err != nil {
		return fmt.Errorf("firewall %q: compile pattern: %w", d.Name, err)
	}
	d.re = re

	if d.LookupTimeout == 0 {
		d.LookupTimeout = DefaultLookupTimeout
	}

	// At most one authenticator may claim a given request: reject claim
	// overlap pairwise at load time instead of discovering ambiguity per
	// request.
	for i := 0; i < len(d.Authenticators); i++ {
		for j := i + 1; j < len(d.Authenticators); j++ {
			a, b := d.Authenticators[i], d.Authenticators[j]
			if a.Claim().Overlaps(b.Claim()) {
				return fmt.Errorf("firewall %q: authenticators %q and %q claim overlapping requests",
					d.Name, a.Name(), b.Name())
			}
		}
	}

	for _, a := range d.Authenticators {
		switch a.(type) {
		case *authenticator.Form:
			if d.Users == nil || d.Passwords == nil || d.CSRF == nil || d.Sessions == nil {
				return fmt.Errorf("firewall %q: form strategy requires users, password checker, csrf checker and sessions", d.Name)
			}
		case *authenticator.OAuth:
			if d.Users == nil || d.Sessions == nil {
				return fmt.Errorf("firewall %q: oauth strategy requires users and sessions", d.Name)
			}
		}
	}

	return nil
}

// Matches reports whether the firewall's scope covers the path.
func (d *Definition) Matches(path string) bool {
	return d.re.MatchString(path)
}
