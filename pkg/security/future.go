package security

import (
	"context"
	"sync"
	"sync/atomic"
)

// IdentityFuture is a deferred identity resolution. Resolution runs at
// most once; every caller observes the same outcome. Safe for concurrent
// use, though the pipeline itself sequences its accesses.
type IdentityFuture struct {
	resolve func(context.Context) (Identity, error)

	once     sync.Once
	resolved atomic.Bool
	id       Identity
	err      error
}

// ResolvedIdentity returns a future that is already complete.
func ResolvedIdentity(id Identity) *IdentityFuture {
	f := &IdentityFuture{id: id}
	f.resolved.Store(true)
	return f
}

// DeferIdentity returns a future backed by resolve. The function is not
// called until the first Get.
func DeferIdentity(resolve func(context.Context) (Identity, error)) *IdentityFuture {
	return &IdentityFuture{resolve: resolve}
}

// Get resolves the identity, memoizing the result. The context of the
// first caller governs the resolution.
func (f *IdentityFuture) Get(ctx context.Context) (Identity, error) {
	if f.resolve != nil {
		f.once.Do(func() {
			f.id, f.err = f.resolve(ctx)
			f.resolved.Store(true)
		})
	}
	return f.id, f.err
}

// Peek returns the identity if resolution already completed successfully.
// It never triggers resolution.
func (f *IdentityFuture) Peek() (Identity, bool) {
	if !f.resolved.Load() || f.err != nil {
		return Identity{}, false
	}
	return f.id, true
}
