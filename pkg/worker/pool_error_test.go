package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoolSentinelErrors(t *testing.T) {
	ok := func(context.Context, inbound) error { return nil }

	t.Run("submit before start", func(t *testing.T) {
		pool := NewPool(2, 10, ok)
		if err := pool.Submit(inbound{id: 1}); !errors.Is(err, ErrPoolNotStarted) {
			t.Errorf("got %v, want ErrPoolNotStarted", err)
		}
	})

	t.Run("double start", func(t *testing.T) {
		pool := NewPool(2, 10, ok)
		if err := pool.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		defer pool.Stop(5 * time.Second)

		if err := pool.Start(context.Background()); !errors.Is(err, ErrPoolAlreadyStarted) {
			t.Errorf("got %v, want ErrPoolAlreadyStarted", err)
		}
	})

	t.Run("submit after stop", func(t *testing.T) {
		pool := NewPool(2, 10, ok)
		if err := pool.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := pool.Stop(5 * time.Second); err != nil {
			t.Fatalf("Stop: %v", err)
		}

		if err := pool.Submit(inbound{id: 1}); !errors.Is(err, ErrPoolStopped) {
			t.Errorf("got %v, want ErrPoolStopped", err)
		}
	})

	t.Run("queue full", func(t *testing.T) {
		gate := make(chan struct{})
		t.Cleanup(func() { close(gate) })
		blocked := func(_ context.Context, _ inbound) error {
			<-gate
			return nil
		}

		pool := NewPool(1, 2, blocked)
		if err := pool.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}

		// One item occupies the worker, two fill the queue; the rest
		// must be rejected.
		var full error
		for i := 0; i < 10; i++ {
			if err := pool.Submit(inbound{id: i}); err != nil {
				full = err
				break
			}
		}
		if !errors.Is(full, ErrQueueFull) {
			t.Errorf("got %v, want ErrQueueFull", full)
		}
		if pool.Stats().Dropped == 0 {
			t.Error("Stats.Dropped not incremented")
		}
	})

	t.Run("stop timeout leaves pool stopped", func(t *testing.T) {
		gate := make(chan struct{})
		t.Cleanup(func() { close(gate) })
		stuck := func(_ context.Context, _ inbound) error {
			<-gate
			return nil
		}

		pool := NewPool(1, 10, stuck)
		if err := pool.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := pool.Submit(inbound{id: 1}); err != nil {
			t.Fatalf("Submit: %v", err)
		}

		if err := pool.Stop(50 * time.Millisecond); !errors.Is(err, ErrStopTimeout) {
			t.Errorf("got %v, want ErrStopTimeout", err)
		}

		// The pool is terminally stopped even after a timed-out stop:
		// submits are rejected and a second stop is a no-op, never a
		// second channel close.
		if err := pool.Submit(inbound{id: 2}); !errors.Is(err, ErrPoolStopped) {
			t.Errorf("submit after timed-out stop: got %v, want ErrPoolStopped", err)
		}
		if err := pool.Stop(50 * time.Millisecond); err != nil {
			t.Errorf("second Stop: got %v, want nil", err)
		}
	})

	t.Run("nil processor panics with sentinel", func(t *testing.T) {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected panic for nil processor")
			}
			if err, isErr := r.(error); !isErr || !errors.Is(err, ErrNilProcessor) {
				t.Errorf("panic value = %v, want ErrNilProcessor", r)
			}
		}()
		NewPool[inbound](5, 100, nil)
	})
}

func TestPoolSentinelsAreBare(t *testing.T) {
	pool := NewPool(2, 10, func(context.Context, inbound) error { return nil })

	err := pool.Submit(inbound{id: 1})
	if !errors.Is(err, ErrPoolNotStarted) {
		t.Errorf("errors.Is failed: %v", err)
	}
	if err != ErrPoolNotStarted {
		t.Errorf("sentinel is wrapped: %v", err)
	}
}
