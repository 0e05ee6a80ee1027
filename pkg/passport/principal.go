package passport

import "errors"

// ErrEmptyRoles is returned when a principal would be constructed with no
// roles. An authenticated principal always carries at least one role.
var ErrEmptyRoles = errors.New("principal must have at least one role")

// principalKind tags the principal variant.
type principalKind int

const (
	realPrincipal principalKind = iota
	virtualPrincipal
)

// Principal is an authenticated identity and its roles.
//
// A real principal is backed by a user record; a virtual principal is
// reconstructed entirely from a verified token claim set, with no
// datastore lookup. Downstream authorization code never needs to branch
// on the variant: Key, Identifier and Roles behave identically.
type Principal struct {
	kind       principalKind
	key        string
	identifier string
	roles      []string
}

// NewPrincipal creates a real principal backed by a user record.
func NewPrincipal(key, identifier string, roles []string) (*Principal, error) {
	return newPrincipal(realPrincipal, key, identifier, roles)
}

// NewVirtualPrincipal creates a virtual principal derived from a verified
// claim set.
func NewVirtualPrincipal(key, identifier string, roles []string) (*Principal, error) {
	return newPrincipal(virtualPrincipal, key, identifier, roles)
}

func newPrincipal(kind principalKind, key, identifier string, roles []string) (*Principal, error) {
	if len(roles) == 0 {
		return nil, ErrEmptyRoles
	}

	// Copy roles to prevent mutation
	rolesCopy := make([]string, len(roles))
	copy(rolesCopy, roles)

	return &Principal{
		kind:       kind,
		key:        key,
		identifier: identifier,
		roles:      rolesCopy,
	}, nil
}

// Key returns the opaque user key.
func (p *Principal) Key() string { return p.key }

// Identifier returns the display/lookup identifier, typically an email.
func (p *Principal) Identifier() string { return p.identifier }

// Roles returns a copy of the principal's roles.
func (p *Principal) Roles() []string {
	roles := make([]string, len(p.roles))
	copy(roles, p.roles)
	return roles
}

// HasRole reports whether the principal holds the given role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal holds at least one of the
// given roles.
func (p *Principal) HasAnyRole(roles []string) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// Virtual reports whether the principal was reconstructed from a token
// claim set rather than a user record.
func (p *Principal) Virtual() bool { return p.kind == virtualPrincipal }
