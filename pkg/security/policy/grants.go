package policy

import (
	"context"
	"fmt"

	"github.com/gatehouse-dev/gatehouse/pkg/security"
	"github.com/gatehouse-dev/gatehouse/pkg/storage"
)

// GrantAugment loads role grants for the authenticated principal from a
// store and permits with an identity carrying the extra roles. The
// lookup may hit a database, so it runs inside the execution bridge.
//
// Anonymous requests and principals without grants pass through
// unaugmented; later policies decide whether that is enough.
type GrantAugment struct {
	Store storage.GrantStore
}

// Name identifies the policy in metrics.
func (p *GrantAugment) Name() string { return "grant-augment" }

// Check permits every request, augmenting the identity when the store
// holds grants for the principal.
func (p *GrantAugment) Check(ctx context.Context, rc *security.RequestContext, identity *security.IdentityFuture, exec security.ExecutionContext) (security.CheckResult, error) {
	return exec.RunBlocking(ctx, rc, identity, func(_ *security.RequestContext, id security.Identity) (security.CheckResult, error) {
		if id.IsAnonymous() {
			return security.Permit(), nil
		}
		roles, err := p.Store.RolesFor(ctx, id.Principal())
		if err != nil {
			return security.CheckResult{}, fmt.Errorf("loading grants for %q: %w", id.Principal(), err)
		}
		if len(roles) == 0 {
			return security.Permit(), nil
		}
		return security.PermitAs(id.WithRoles(roles...)), nil
	})
}
