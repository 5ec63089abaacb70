// Package authz decides whether a caller may reach a path. It is a pure
// function of the path and the decoded identity.
package authz

import (
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/utils"
)

type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnauthenticated
	ReasonForbidden
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonForbidden:
		return "forbidden"
	default:
		return "none"
	}
}

// Rule protects everything under Prefix. An empty Roles list admits any
// authenticated identity.
type Rule struct {
	Prefix string
	Roles  []auth.Role
}

func (r Rule) permits(role auth.Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

type Decision struct {
	Allowed bool
	Reason  Reason
}

// Gate evaluates an ordered policy table; the first matching rule wins.
type Gate struct {
	rules []Rule
}

func NewGate(rules []Rule) *Gate {
	return &Gate{rules: rules}
}

// DefaultRules is the stock policy table. Role-restricted API areas sit
// ahead of the generic protected API prefixes so they are not shadowed.
func DefaultRules(protectedAPI []string) []Rule {
	staff := []auth.Role{auth.RoleInstructor, auth.RoleAdmin}
	admin := []auth.Role{auth.RoleAdmin}

	rules := []Rule{
		{Prefix: "/admin", Roles: admin},
		{Prefix: "/api/admin", Roles: admin},
		{Prefix: "/instructor", Roles: staff},
		{Prefix: "/api/instructor", Roles: staff},
		{Prefix: "/dashboard"},
	}
	for _, p := range protectedAPI {
		rules = append(rules, Rule{Prefix: p})
	}
	return rules
}

// Match returns the first rule covering path.
func (g *Gate) Match(path string) (Rule, bool) {
	for _, r := range g.rules {
		if utils.HasPathPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return Rule{}, false
}

// RequiresIdentity reports whether any rule covers path.
func (g *Gate) RequiresIdentity(path string) bool {
	_, ok := g.Match(path)
	return ok
}

// Authorize decides access for p, which is nil when the caller carries no
// valid identity.
func (g *Gate) Authorize(path string, p *auth.Principal) Decision {
	rule, ok := g.Match(path)
	if !ok {
		return Decision{Allowed: true}
	}

	if p == nil {
		return Decision{Reason: ReasonUnauthenticated}
	}
	if !rule.permits(p.Role) {
		return Decision{Reason: ReasonForbidden}
	}

	return Decision{Allowed: true}
}
