package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360/simkernel/metric"
)

// inbound stands in for a queued request in tests.
type inbound struct {
	id    int
	fail  bool
	delay time.Duration
}

func TestNewPoolDefaults(t *testing.T) {
	processor := func(context.Context, inbound) error { return nil }

	pool := NewPool(5, 100, processor)
	if pool.workers != 5 {
		t.Errorf("workers = %d, want 5", pool.workers)
	}
	if pool.queueSize != 100 {
		t.Errorf("queueSize = %d, want 100", pool.queueSize)
	}

	pool = NewPool(0, 0, processor)
	if pool.workers != 10 {
		t.Errorf("default workers = %d, want 10", pool.workers)
	}
	if pool.queueSize != 1000 {
		t.Errorf("default queueSize = %d, want 1000", pool.queueSize)
	}
}

func TestPoolProcessesSubmittedWork(t *testing.T) {
	const items = 8

	var wg sync.WaitGroup
	wg.Add(items)
	var processed atomic.Int64
	processor := func(_ context.Context, _ inbound) error {
		processed.Add(1)
		wg.Done()
		return nil
	}

	pool := NewPool(2, 16, processor)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < items; i++ {
		if err := pool.Submit(inbound{id: i}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	wg.Wait()

	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := processed.Load(); got != items {
		t.Errorf("processed = %d, want %d", got, items)
	}
}

func TestPoolStopDrainsQueue(t *testing.T) {
	var processed atomic.Int64
	processor := func(_ context.Context, work inbound) error {
		time.Sleep(work.delay)
		processed.Add(1)
		return nil
	}

	pool := NewPool(2, 32, processor)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	const items = 10
	for i := 0; i < items; i++ {
		if err := pool.Submit(inbound{id: i, delay: 5 * time.Millisecond}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	// Stop closes the queue and waits, so everything already accepted
	// must be processed by the time it returns.
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := processed.Load(); got != items {
		t.Errorf("processed after drain = %d, want %d", got, items)
	}
}

func TestPoolProcessorErrorsCounted(t *testing.T) {
	const items = 10

	var wg sync.WaitGroup
	wg.Add(items)
	processor := func(_ context.Context, work inbound) error {
		defer wg.Done()
		if work.fail {
			return errors.New("dispatch failed")
		}
		return nil
	}

	pool := NewPool(2, 16, processor)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop(5 * time.Second)

	for i := 0; i < items; i++ {
		if err := pool.Submit(inbound{id: i, fail: i%2 == 0}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	wg.Wait()

	stats := pool.Stats()
	if stats.Processed != items {
		t.Errorf("Stats.Processed = %d, want %d", stats.Processed, items)
	}
	if stats.Failed != items/2 {
		t.Errorf("Stats.Failed = %d, want %d", stats.Failed, items/2)
	}
}

func TestPoolConcurrentSubmitters(t *testing.T) {
	const submitters = 10
	const perSubmitter = 10

	var wg sync.WaitGroup
	wg.Add(submitters * perSubmitter)
	processor := func(_ context.Context, _ inbound) error {
		wg.Done()
		return nil
	}

	pool := NewPool(5, submitters*perSubmitter, processor)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop(5 * time.Second)

	var submitWG sync.WaitGroup
	for i := 0; i < submitters; i++ {
		submitWG.Add(1)
		go func(base int) {
			defer submitWG.Done()
			for j := 0; j < perSubmitter; j++ {
				if err := pool.Submit(inbound{id: base + j}); err != nil {
					t.Errorf("Submit %d: %v", base+j, err)
				}
			}
		}(i * perSubmitter)
	}
	submitWG.Wait()
	wg.Wait()

	stats := pool.Stats()
	if stats.Submitted != submitters*perSubmitter {
		t.Errorf("Stats.Submitted = %d, want %d", stats.Submitted, submitters*perSubmitter)
	}
}

func TestPoolContextCancellationStopsWorkers(t *testing.T) {
	started := make(chan struct{}, 1)
	processor := func(ctx context.Context, _ inbound) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}

	pool := NewPool(1, 4, processor)

	ctx, cancel := context.WithCancel(context.Background())
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := pool.Submit(inbound{id: 1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	cancel()

	// Workers unblock via ctx; Stop should return promptly.
	if err := pool.Stop(time.Second); err != nil {
		t.Fatalf("Stop after cancel: %v", err)
	}
}

func TestPoolStats(t *testing.T) {
	processor := func(context.Context, inbound) error { return nil }

	pool := NewPool(3, 50, processor)

	stats := pool.Stats()
	if stats.Workers != 3 || stats.QueueSize != 50 {
		t.Errorf("initial stats = %+v", stats)
	}
	if stats.Submitted != 0 || stats.Processed != 0 || stats.Dropped != 0 {
		t.Errorf("counters not zero initially: %+v", stats)
	}
}

func TestPoolMetricsRegistered(t *testing.T) {
	const items = 4

	var wg sync.WaitGroup
	wg.Add(items)
	processor := func(_ context.Context, _ inbound) error {
		wg.Done()
		return nil
	}

	registry := metric.NewMetricsRegistry()
	pool := NewPool(2, 8, processor,
		WithMetricsRegistry[inbound](registry, "dispatch"))
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < items; i++ {
		if err := pool.Submit(inbound{id: i}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	wg.Wait()

	// Stop drains the workers, so every observation lands before Gather.
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	families, err := registry.PrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	found := map[string]bool{}
	for _, fam := range families {
		found[fam.GetName()] = true
		if fam.GetName() == "dispatch_submitted_total" {
			if got := fam.GetMetric()[0].GetCounter().GetValue(); got != items {
				t.Errorf("dispatch_submitted_total = %v, want %d", got, items)
			}
		}
	}

	for _, name := range []string{
		"dispatch_queue_depth",
		"dispatch_submitted_total",
		"dispatch_processed_total",
		"dispatch_processing_duration_seconds",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}
