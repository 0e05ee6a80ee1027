// Package access evaluates ordered access-control rules for a request
// path and an optional authenticated principal.
//
// Rules are evaluated strictly in declaration order; the first rule whose
// pattern matches the path governs. Ordering is deliberate override
// semantics, not most-specific-wins: operators declare a narrow
// allow-anonymous rule before a broad role-required rule.
package access

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/palisadeproject/palisade/pkg/passport"
)

// Decision is the outcome of an access evaluation.
type Decision int

const (
	// Deny rejects the request. It is the recommended default when no
	// rule matches.
	Deny Decision = iota

	// Allow lets the request proceed.
	Allow
)

// String returns the decision name.
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// RuleSpec declares one access rule. Exactly one of Anonymous, Roles or
// Expression must be set.
type RuleSpec struct {
	// Pattern is an anchored regular expression matched against the
	// request path. It must begin with '^' so prefix-vs-regex ambiguity
	// cannot arise.
	Pattern string

	// Anonymous allows the request unconditionally, authenticated or not.
	Anonymous bool

	// Roles allows the request when the principal holds at least one of
	// the listed roles (OR semantics).
	Roles []string

	// Expression is a CEL expression over 'path' and 'principal'
	// evaluating to a boolean. Evaluation errors deny (fail closed).
	Expression string
}

// rule is a compiled RuleSpec.
type rule struct {
	spec    RuleSpec
	re      *regexp.Regexp
	program cel.Program
}

// Policy is an ordered, immutable rule list plus the default decision for
// unmatched paths. Policies are compiled once at startup and safely
// shared across concurrent requests.
type Policy struct {
	rules           []rule
	defaultDecision Decision
}

// NewPolicy compiles the rule specs. Any malformed pattern or expression
// is a configuration error; callers must refuse to start on error.
func NewPolicy(specs []RuleSpec, defaultDecision Decision) (*Policy, error) {
	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("principal", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create expression environment: %w", err)
	}

	p := &Policy{defaultDecision: defaultDecision}

	for i, spec := range specs {
		r := rule{spec: spec}

		if !strings.HasPrefix(spec.Pattern, "^") {
			return nil, fmt.Errorf("rule %d: pattern %q must be anchored with '^'", i, spec.Pattern)
		}
		r.re, err = regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: compile pattern %q: %w", i, spec.Pattern, err)
		}

		markers := 0
		if spec.Anonymous {
			markers++
		}
		if len(spec.Roles) > 0 {
			markers++
		}
		if spec.Expression != "" {
			markers++
		}
		if markers != 1 {
			return nil, fmt.Errorf("rule %d (%s): exactly one of anonymous, roles or expression is required", i, spec.Pattern)
		}

		for _, role := range spec.Roles {
			if role == "" {
				return nil, fmt.Errorf("rule %d (%s): empty role name", i, spec.Pattern)
			}
		}

		if spec.Expression != "" {
			ast, issues := env.Compile(spec.Expression)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("rule %d (%s): compile expression: %w", i, spec.Pattern, issues.Err())
			}
			if !ast.OutputType().IsExactType(cel.BoolType) {
				return nil, fmt.Errorf("rule %d (%s): expression must evaluate to a boolean", i, spec.Pattern)
			}
			r.program, err = env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("rule %d (%s): build expression program: %w", i, spec.Pattern, err)
			}
		}

		p.rules = append(p.rules, r)
	}

	return p, nil
}

// Rules returns the rule specs in declaration order.
func (p *Policy) Rules() []RuleSpec {
	specs := make([]RuleSpec, len(p.rules))
	for i, r := range p.rules {
		specs[i] = r.spec
	}
	return specs
}

// DefaultDecision returns the decision applied when no rule matches.
func (p *Policy) DefaultDecision() Decision {
	return p.defaultDecision
}

// Evaluate walks the rules in order and returns the decision of the first
// rule whose pattern matches the path. principal may be nil (anonymous
// request).
func (p *Policy) Evaluate(path string, principal *passport.Principal) Decision {
	for _, r := range p.rules {
		if !r.re.MatchString(path) {
			continue
		}
		return r.decide(path, principal)
	}
	return p.defaultDecision
}

func (r *rule) decide(path string, principal *passport.Principal) Decision {
	switch {
	case r.spec.Anonymous:
		return Allow
	case len(r.spec.Roles) > 0:
		if principal != nil && principal.HasAnyRole(r.spec.Roles) {
			return Allow
		}
		return Deny
	default:
		return r.evalExpression(path, principal)
	}
}

// evalExpression runs the compiled CEL program. Anything but a clean
// boolean true denies.
func (r *rule) evalExpression(path string, principal *passport.Principal) Decision {
	pv := map[string]any{
		"authenticated": principal != nil,
		"roles":         []string{},
	}
	if principal != nil {
		pv["key"] = principal.Key()
		pv["identifier"] = principal.Identifier()
		pv["roles"] = principal.Roles()
		pv["virtual"] = principal.Virtual()
	}

	out, _, err := r.program.Eval(map[string]any{
		"path":      path,
		"principal": pv,
	})
	if err != nil {
		return Deny
	}
	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return Deny
	}
	return Allow
}
