package policy

import (
	"context"

	"github.com/gatehouse-dev/gatehouse/pkg/security"
)

// PermitAll allows every request without touching the identity.
type PermitAll struct{}

// Name identifies the policy in metrics.
func (PermitAll) Name() string { return "permit-all" }

// Check always permits.
func (PermitAll) Check(_ context.Context, _ *security.RequestContext, _ *security.IdentityFuture, _ security.ExecutionContext) (security.CheckResult, error) {
	return security.Permit(), nil
}

// DenyAll denies every request.
type DenyAll struct{}

// Name identifies the policy in metrics.
func (DenyAll) Name() string { return "deny-all" }

// Check always denies.
func (DenyAll) Check(_ context.Context, _ *security.RequestContext, _ *security.IdentityFuture, _ security.ExecutionContext) (security.CheckResult, error) {
	return security.Deny(), nil
}

// Authenticated denies anonymous requests. Identity resolution may
// block, so the check runs through the execution bridge.
type Authenticated struct{}

// Name identifies the policy in metrics.
func (Authenticated) Name() string { return "authenticated" }

// Check permits any non-anonymous identity.
func (Authenticated) Check(ctx context.Context, rc *security.RequestContext, identity *security.IdentityFuture, exec security.ExecutionContext) (security.CheckResult, error) {
	return exec.RunBlocking(ctx, rc, identity, func(_ *security.RequestContext, id security.Identity) (security.CheckResult, error) {
		if id.IsAnonymous() {
			return security.Deny(), nil
		}
		return security.Permit(), nil
	})
}
