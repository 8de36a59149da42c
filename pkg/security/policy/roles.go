package policy

import (
	"context"

	"github.com/gatehouse-dev/gatehouse/pkg/security"
)

// RolesAllowed returns a policy that permits identities holding at
// least one of the given roles. Anonymous identities hold no roles and
// are always denied.
func RolesAllowed(roles ...string) security.Policy {
	return &rolesAllowed{roles: append([]string(nil), roles...)}
}

type rolesAllowed struct {
	roles []string
}

// Name identifies the policy in metrics.
func (p *rolesAllowed) Name() string { return "roles-allowed" }

// Check resolves the identity through the execution bridge and matches
// its roles against the allowed set.
func (p *rolesAllowed) Check(ctx context.Context, rc *security.RequestContext, identity *security.IdentityFuture, exec security.ExecutionContext) (security.CheckResult, error) {
	return exec.RunBlocking(ctx, rc, identity, func(_ *security.RequestContext, id security.Identity) (security.CheckResult, error) {
		for _, role := range p.roles {
			if id.HasRole(role) {
				return security.Permit(), nil
			}
		}
		return security.Deny(), nil
	})
}
