package policy

import (
	"context"
	"strings"

	"github.com/gatehouse-dev/gatehouse/pkg/security"
)

// Rule maps request paths and optional methods to a policy. Patterns
// are exact paths or trailing-wildcard prefixes like "/admin/*".
type Rule struct {
	Pattern string
	Methods []string // empty matches all methods
	Policy  security.Policy
}

// matches reports whether the rule applies to the request method and path.
func (r Rule) matches(method, path string) bool {
	if len(r.Methods) > 0 {
		ok := false
		for _, m := range r.Methods {
			if strings.EqualFold(m, method) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if prefix, found := strings.CutSuffix(r.Pattern, "*"); found {
		return strings.HasPrefix(path, prefix)
	}
	return path == r.Pattern
}

// PathMatch builds a policy that delegates to the first rule matching
// the request. Rules are evaluated in order; requests matching no rule
// fall through to fallback, or are permitted when fallback is nil.
func PathMatch(rules []Rule, fallback security.Policy) security.Policy {
	return &pathMatch{rules: append([]Rule(nil), rules...), fallback: fallback}
}

type pathMatch struct {
	rules    []Rule
	fallback security.Policy
}

// Name identifies the policy in metrics.
func (p *pathMatch) Name() string { return "path-match" }

// Check delegates to the first matching rule's policy.
func (p *pathMatch) Check(ctx context.Context, rc *security.RequestContext, identity *security.IdentityFuture, exec security.ExecutionContext) (security.CheckResult, error) {
	req := rc.Request()
	for _, rule := range p.rules {
		if rule.matches(req.Method, req.URL.Path) {
			return rule.Policy.Check(ctx, rc, identity, exec)
		}
	}
	if p.fallback != nil {
		return p.fallback.Check(ctx, rc, identity, exec)
	}
	return security.Permit(), nil
}
