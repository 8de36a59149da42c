package security

import "context"

// CheckResult is the outcome of a single policy check: permitted,
// optionally with a replacement identity, or denied. Failures travel on
// the error return of Policy.Check, never inside a CheckResult.
type CheckResult struct {
	permitted bool
	augmented *Identity
}

// Permit returns a permitting result with no identity change.
func Permit() CheckResult {
	return CheckResult{permitted: true}
}

// PermitAs permits the request and replaces the identity observed by
// every policy after this one.
func PermitAs(id Identity) CheckResult {
	return CheckResult{permitted: true, augmented: &id}
}

// Deny returns a denying result.
func Deny() CheckResult {
	return CheckResult{}
}

// Permitted reports whether the check passed.
func (r CheckResult) Permitted() bool {
	return r.permitted
}

// AugmentedIdentity returns the replacement identity, if the policy
// asserted one.
func (r CheckResult) AugmentedIdentity() (Identity, bool) {
	if r.augmented == nil {
		return Identity{}, false
	}
	return *r.augmented, true
}

// Policy is a single unit of authorization logic. The policies of one
// request run strictly in list order, never concurrently with each
// other, so a policy always observes the identity the previous one chose
// to assert.
//
// A policy that needs blocking work must route it through exec rather
// than blocking directly; the execution context decides whether the
// current goroutine may block or the work belongs on the dispatch pool.
type Policy interface {
	Check(ctx context.Context, rc *RequestContext, identity *IdentityFuture, exec ExecutionContext) (CheckResult, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx context.Context, rc *RequestContext, identity *IdentityFuture, exec ExecutionContext) (CheckResult, error)

// Check calls f.
func (f PolicyFunc) Check(ctx context.Context, rc *RequestContext, identity *IdentityFuture, exec ExecutionContext) (CheckResult, error) {
	return f(ctx, rc, identity, exec)
}

// BlockingCheck is the callback shape run by ExecutionContext.RunBlocking.
// It receives the resolved identity and may block.
type BlockingCheck func(rc *RequestContext, identity Identity) (CheckResult, error)

// ExecutionContext lets a policy apply blocking logic to the eventually
// resolved identity. Whatever path the work takes, the caller observes a
// single result and a single failure channel: panics in the callback,
// identity resolution errors, and pool rejections all come back as
// ordinary errors.
type ExecutionContext interface {
	RunBlocking(ctx context.Context, rc *RequestContext, identity *IdentityFuture, fn BlockingCheck) (CheckResult, error)
}
