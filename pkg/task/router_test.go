package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestConfig() RouterConfig {
	return RouterConfig{
		DefaultMaxAttempts: 3,
		InitialBackoff:     5 * time.Millisecond,
		MaxBackoff:         10 * time.Millisecond,
		IdempotencyTTL:     100 * time.Millisecond,
		GroupBuffer:        8,
		CleanupInterval:    20 * time.Millisecond,
	}
}

func TestDispatchExecutesHandler(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	done := make(chan string, 1)
	router.RegisterHandler("ping", func(ctx context.Context, payload any) error {
		done <- payload.(string)
		return nil
	})

	if err := router.Dispatch(context.Background(), Task{Type: "ping", Payload: "ok"}); err != nil {
		t.Fatalf("dispatch returned error: %v", err)
	}

	select {
	case val := <-done:
		if val != "ok" {
			t.Fatalf("unexpected payload: %s", val)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("handler did not run in time")
	}
}

func TestDispatchUnknownType(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	err := router.Dispatch(context.Background(), Task{Type: "nope"})
	if !errors.Is(err, ErrUnknownTaskType) {
		t.Fatalf("expected ErrUnknownTaskType, got %v", err)
	}
}

func TestDispatchIdempotency(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	var calls int32
	ready := make(chan struct{}, 1)
	router.RegisterHandler("once", func(ctx context.Context, payload any) error {
		atomic.AddInt32(&calls, 1)
		ready <- struct{}{}
		return nil
	})

	task := Task{Type: "once", Options: TaskOptions{IdempotencyKey: "dup", IdempotencyTTL: 500 * time.Millisecond}}
	if err := router.Dispatch(context.Background(), task); err != nil {
		t.Fatalf("first dispatch failed: %v", err)
	}
	if err := router.Dispatch(context.Background(), task); !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("expected duplicate error, got: %v", err)
	}

	select {
	case <-ready:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("handler did not run for first dispatch")
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected handler called once, got %d", calls)
	}
}

func TestDeduplicateClaimsKeyOnce(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	if !router.Deduplicate("interaction:abc") {
		t.Fatalf("first claim must succeed")
	}
	if router.Deduplicate("interaction:abc") {
		t.Fatalf("second claim within the TTL must be rejected")
	}
	if !router.Deduplicate("interaction:other") {
		t.Fatalf("distinct keys must not collide")
	}
	if !router.Deduplicate("") {
		t.Fatalf("empty key carries no claim")
	}

	// Claims expire with the idempotency TTL.
	time.Sleep(120 * time.Millisecond)
	if !router.Deduplicate("interaction:abc") {
		t.Fatalf("expired claim must be reusable")
	}
}

func TestDispatchRetriesOnError(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	var attempts int32
	done := make(chan struct{}, 1)
	router.RegisterHandler("flaky", func(ctx context.Context, payload any) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("transient")
		}
		done <- struct{}{}
		return nil
	})

	task := Task{Type: "flaky", Options: TaskOptions{MaxAttempts: 3}}
	if err := router.Dispatch(context.Background(), task); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not succeed after retries, attempts=%d", atomic.LoadInt32(&attempts))
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestGroupSerialization(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	const n = 20
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(n)

	router.RegisterHandler("ordered", func(ctx context.Context, payload any) error {
		defer wg.Done()
		mu.Lock()
		order = append(order, payload.(int))
		mu.Unlock()
		return nil
	})

	for i := 0; i < n; i++ {
		task := Task{Type: "ordered", Payload: i, Options: TaskOptions{GroupKey: "same"}}
		if err := router.Dispatch(context.Background(), task); err != nil {
			t.Fatalf("dispatch %d failed: %v", i, err)
		}
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("group did not serialize in dispatch order: %v", order)
		}
	}
}

func TestDispatchAfter(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	done := make(chan time.Time, 1)
	router.RegisterHandler("later", func(ctx context.Context, payload any) error {
		done <- time.Now()
		return nil
	})

	start := time.Now()
	router.DispatchAfter(30*time.Millisecond, Task{Type: "later"})

	select {
	case ran := <-done:
		if ran.Sub(start) < 25*time.Millisecond {
			t.Fatalf("task ran too early: %v", ran.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("delayed task never ran")
	}
}

func TestDispatchAfterClosedRouter(t *testing.T) {
	router := NewRouter(newTestConfig())
	router.RegisterHandler("later", func(ctx context.Context, payload any) error {
		t.Errorf("task must not run after close")
		return nil
	})
	router.DispatchAfter(50*time.Millisecond, Task{Type: "later"})
	router.Close()
	time.Sleep(80 * time.Millisecond)
}

func TestCloseRejectsDispatch(t *testing.T) {
	router := NewRouter(newTestConfig())
	router.RegisterHandler("x", func(ctx context.Context, payload any) error { return nil })
	router.Close()

	if err := router.Dispatch(context.Background(), Task{Type: "x"}); !errors.Is(err, ErrRouterClosed) {
		t.Fatalf("expected ErrRouterClosed, got %v", err)
	}
}

func TestStats(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	router.RegisterHandler("a", func(ctx context.Context, payload any) error { return nil })
	router.RegisterHandler("b", func(ctx context.Context, payload any) error { return nil })

	stats := router.Stats()
	if stats.RegisteredTypes != 2 {
		t.Fatalf("expected 2 registered types, got %d", stats.RegisteredTypes)
	}
	if stats.RouterClosed {
		t.Fatalf("router should not report closed")
	}
}
