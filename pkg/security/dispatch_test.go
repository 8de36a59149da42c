package security

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRunBlocking_InlineWhenAllowed(t *testing.T) {
	exec := NewExecutionContext(NewDispatcher(1))
	rc, _ := newTestContext(t)
	identity := ResolvedIdentity(NewIdentity("alice", "admin"))

	res, err := exec.RunBlocking(context.Background(), rc, identity, func(_ *RequestContext, id Identity) (CheckResult, error) {
		if id.HasRole("admin") {
			return Permit(), nil
		}
		return Deny(), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Permitted() {
		t.Error("check denied, want permit")
	}
}

func TestRunBlocking_DispatchesWhenDisallowed(t *testing.T) {
	exec := NewExecutionContext(NewDispatcher(4))
	rc, _ := newTestContext(t, WithBlockingDisallowed())
	identity := ResolvedIdentity(NewIdentity("alice"))

	res, err := exec.RunBlocking(context.Background(), rc, identity, func(_ *RequestContext, id Identity) (CheckResult, error) {
		return PermitAs(id.WithRoles("granted")), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	augmented, ok := res.AugmentedIdentity()
	if !ok || !augmented.HasRole("granted") {
		t.Errorf("augmented identity = %v (ok=%v), want granted role", augmented, ok)
	}
}

func TestRunBlocking_SaturationRejects(t *testing.T) {
	d := NewDispatcher(1)
	exec := NewExecutionContext(d)

	// Occupy the single slot with a task that blocks until released.
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	if err := d.Submit(func() { defer wg.Done(); <-release }); err != nil {
		t.Fatal(err)
	}

	rc, _ := newTestContext(t, WithBlockingDisallowed())
	_, err := exec.RunBlocking(context.Background(), rc, ResolvedIdentity(Anonymous()), func(*RequestContext, Identity) (CheckResult, error) {
		return Permit(), nil
	})
	if !errors.Is(err, ErrDispatchSaturated) {
		t.Errorf("err = %v, want ErrDispatchSaturated", err)
	}

	close(release)
	wg.Wait()

	// The slot frees up again after the task completes.
	deadline := time.After(time.Second)
	for {
		if err := d.Submit(func() {}); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("dispatch slot never released")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRunBlocking_PanicBecomesError(t *testing.T) {
	exec := NewExecutionContext(NewDispatcher(1))
	rc, _ := newTestContext(t)

	_, err := exec.RunBlocking(context.Background(), rc, ResolvedIdentity(Anonymous()), func(*RequestContext, Identity) (CheckResult, error) {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "policy check panicked") {
		t.Errorf("err = %v, want panic conversion", err)
	}
}

func TestRunBlocking_IdentityErrorPropagates(t *testing.T) {
	exec := NewExecutionContext(NewDispatcher(1))
	rc, _ := newTestContext(t)
	boom := errors.New("resolution failed")
	identity := DeferIdentity(func(context.Context) (Identity, error) {
		return Identity{}, boom
	})

	ran := false
	_, err := exec.RunBlocking(context.Background(), rc, identity, func(*RequestContext, Identity) (CheckResult, error) {
		ran = true
		return Permit(), nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if ran {
		t.Error("callback ran despite identity failure")
	}
}

func TestRunBlocking_CanceledContextDuringDispatch(t *testing.T) {
	d := NewDispatcher(1)
	exec := NewExecutionContext(d)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/protected", nil)
	rc := NewRequestContext(rec, r, nil, WithBlockingDisallowed())

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	done := make(chan error, 1)
	go func() {
		_, err := exec.RunBlocking(ctx, rc, ResolvedIdentity(NewIdentity("alice")), func(*RequestContext, Identity) (CheckResult, error) {
			close(started)
			<-release
			return Permit(), nil
		})
		done <- err
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunBlocking did not observe cancellation")
	}
}

func TestDispatcher_DefaultSize(t *testing.T) {
	d := NewDispatcher(0)

	var wg sync.WaitGroup
	release := make(chan struct{})
	for i := 0; i < DefaultDispatchWorkers; i++ {
		wg.Add(1)
		if err := d.Submit(func() { defer wg.Done(); <-release }); err != nil {
			t.Fatalf("submission %d rejected: %v", i, err)
		}
	}
	if err := d.Submit(func() {}); !errors.Is(err, ErrDispatchSaturated) {
		t.Errorf("err = %v, want saturation past the default size", err)
	}
	close(release)
	wg.Wait()
}
