package passport

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateBadgeKind is returned when a badge of the same kind is
	// added twice.
	ErrDuplicateBadgeKind = errors.New("duplicate badge kind")

	// ErrAlreadyResolved is returned when Resolve is called on a passport
	// that already has a principal.
	ErrAlreadyResolved = errors.New("passport already resolved")

	// ErrNoBadges is returned when a passport is constructed with no
	// badges. Such a passport is invalid and must never reach a checker.
	ErrNoBadges = errors.New("passport must carry at least one badge")

	// ErrBadgeNotPresent is returned when marking a badge kind the
	// passport does not carry.
	ErrBadgeNotPresent = errors.New("badge not present")

	// ErrBadgeAlreadyChecked is returned when a badge kind is consumed a
	// second time. Each badge is checked exactly once per request.
	ErrBadgeAlreadyChecked = errors.New("badge already checked")
)

// Passport is one authentication attempt in progress: the badges presented
// by the request, a record of which badges have been checked, and, once
// identity is confirmed, the resolved principal.
type Passport struct {
	badges    map[Kind]Badge
	order     []Kind
	checked   map[Kind]bool
	principal *Principal
}

// New creates a passport from the given badges.
// It fails with ErrNoBadges for an empty set and ErrDuplicateBadgeKind if
// two badges share a kind.
func New(badges ...Badge) (*Passport, error) {
	if len(badges) == 0 {
		return nil, ErrNoBadges
	}

	p := &Passport{
		badges:  make(map[Kind]Badge, len(badges)),
		checked: make(map[Kind]bool, len(badges)),
	}
	for _, b := range badges {
		if err := p.addBadge(b); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Passport) addBadge(b Badge) error {
	kind := b.Kind()
	if _, exists := p.badges[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBadgeKind, kind)
	}
	p.badges[kind] = b
	p.order = append(p.order, kind)
	return nil
}

// Badge returns the badge of the given kind, if present.
func (p *Passport) Badge(kind Kind) (Badge, bool) {
	b, ok := p.badges[kind]
	return b, ok
}

// Has reports whether a badge of the given kind is present.
func (p *Passport) Has(kind Kind) bool {
	_, ok := p.badges[kind]
	return ok
}

// Badges returns the badges in the order they were added.
func (p *Passport) Badges() []Badge {
	out := make([]Badge, 0, len(p.order))
	for _, kind := range p.order {
		out = append(out, p.badges[kind])
	}
	return out
}

// MarkChecked records that the badge of the given kind has been verified.
// It fails with ErrBadgeNotPresent if the passport does not carry the kind
// and ErrBadgeAlreadyChecked on a second call for the same kind.
func (p *Passport) MarkChecked(kind Kind) error {
	if _, ok := p.badges[kind]; !ok {
		return fmt.Errorf("%w: %s", ErrBadgeNotPresent, kind)
	}
	if p.checked[kind] {
		return fmt.Errorf("%w: %s", ErrBadgeAlreadyChecked, kind)
	}
	p.checked[kind] = true
	return nil
}

// Checked reports whether the badge of the given kind has been verified.
func (p *Passport) Checked(kind Kind) bool {
	return p.checked[kind]
}

// Resolve attaches the authenticated principal.
// It fails with ErrAlreadyResolved if called twice and ErrEmptyRoles if
// the principal carries no roles.
func (p *Passport) Resolve(principal *Principal) error {
	if p.principal != nil {
		return ErrAlreadyResolved
	}
	if principal == nil || len(principal.roles) == 0 {
		return ErrEmptyRoles
	}
	p.principal = principal
	return nil
}

// Principal returns the resolved principal, or nil while unresolved.
func (p *Passport) Principal() *Principal {
	return p.principal
}
