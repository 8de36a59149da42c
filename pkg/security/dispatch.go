package security

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

// DefaultDispatchWorkers bounds the dispatch pool when no size is given.
const DefaultDispatchWorkers = 64

// Dispatcher runs blocking policy callbacks on a shared bounded pool of
// goroutines. The pool is shared across all in-flight requests, so
// callbacks must not perform unbounded blocking work.
type Dispatcher struct {
	sem *semaphore.Weighted
}

// NewDispatcher creates a dispatcher with at most size concurrent tasks.
// A size of zero or less selects DefaultDispatchWorkers.
func NewDispatcher(size int) *Dispatcher {
	if size <= 0 {
		size = DefaultDispatchWorkers
	}
	return &Dispatcher{sem: semaphore.NewWeighted(int64(size))}
}

// Submit schedules fn on the pool. When the pool is saturated the
// submission is rejected with ErrDispatchSaturated instead of queueing.
func (d *Dispatcher) Submit(fn func()) error {
	if !d.sem.TryAcquire(1) {
		observability.DispatchRejectedTotal.Inc()
		return ErrDispatchSaturated
	}
	observability.DispatchInflight.Inc()
	go func() {
		defer d.sem.Release(1)
		defer observability.DispatchInflight.Dec()
		fn()
	}()
	return nil
}

// bridge implements ExecutionContext over a Dispatcher.
type bridge struct {
	dispatcher *Dispatcher
}

// NewExecutionContext builds the execution bridge used by the gate: it
// runs blocking callbacks inline when the request context allows
// blocking and dispatches them onto d otherwise.
func NewExecutionContext(d *Dispatcher) ExecutionContext {
	return &bridge{dispatcher: d}
}

// RunBlocking resolves the identity and applies fn, inline or on the
// dispatch pool depending on the request's blocking capability. Failure
// to even schedule the work surfaces as an error, not a crash.
func (b *bridge) RunBlocking(ctx context.Context, rc *RequestContext, identity *IdentityFuture, fn BlockingCheck) (CheckResult, error) {
	if rc.BlockingAllowed() {
		return applyBlocking(ctx, rc, identity, fn)
	}

	type outcome struct {
		res CheckResult
		err error
	}
	done := make(chan outcome, 1)

	if err := b.dispatcher.Submit(func() {
		res, err := applyBlocking(ctx, rc, identity, fn)
		done <- outcome{res: res, err: err}
	}); err != nil {
		return CheckResult{}, err
	}

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return CheckResult{}, ctx.Err()
	}
}

// applyBlocking resolves the identity and applies fn, converting panics
// into errors so callers observe one failure channel regardless of the
// path taken.
func applyBlocking(ctx context.Context, rc *RequestContext, identity *IdentityFuture, fn BlockingCheck) (res CheckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = CheckResult{}
			err = fmt.Errorf("policy check panicked: %v", r)
		}
	}()

	id, err := identity.Get(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	return fn(rc, id)
}
