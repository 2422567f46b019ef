package api

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolAcquireRelease(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 2, MaxSlowWorkers: 1})
	ctx := context.Background()

	if err := pool.Acquire(ctx, LaneFast); err != nil {
		t.Fatalf("Acquire(fast) error: %v", err)
	}
	if got := pool.Stats().ActiveFast; got != 1 {
		t.Errorf("ActiveFast = %d, want 1", got)
	}

	pool.Release(LaneFast)
	stats := pool.Stats()
	if stats.ActiveFast != 0 {
		t.Errorf("ActiveFast after release = %d, want 0", stats.ActiveFast)
	}
	if stats.TotalFast != 1 {
		t.Errorf("TotalFast = %d, want 1", stats.TotalFast)
	}
	if stats.TotalSlow != 0 {
		t.Errorf("TotalSlow = %d, want 0", stats.TotalSlow)
	}
}

func TestWorkerPoolLanesAreIndependent(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 2})

	if !pool.TryAcquire(LaneSlow) || !pool.TryAcquire(LaneSlow) {
		t.Fatal("could not fill slow lane")
	}
	if pool.TryAcquire(LaneSlow) {
		t.Error("TryAcquire(slow) succeeded on a full lane")
	}
	if !pool.TryAcquire(LaneFast) {
		t.Error("TryAcquire(fast) blocked by a full slow lane")
	}

	pool.Release(LaneSlow)
	pool.Release(LaneSlow)
	pool.Release(LaneFast)

	if got := pool.Stats().TotalSlow; got != 2 {
		t.Errorf("TotalSlow = %d, want 2", got)
	}
}

func TestWorkerPoolContextCancellation(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 1})
	if err := pool.Acquire(context.Background(), LaneFast); err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer pool.Release(LaneFast)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pool.Acquire(ctx, LaneFast); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestWorkerPoolTimeout(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 1})
	if err := pool.Acquire(context.Background(), LaneSlow); err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer pool.Release(LaneSlow)

	err := pool.AcquireWithTimeout(LaneSlow, 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AcquireWithTimeout = %v, want context.DeadlineExceeded", err)
	}
}

func TestWorkerPoolConcurrencyLimit(t *testing.T) {
	const limit = 3
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 10, MaxSlowWorkers: limit})

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), LaneSlow, func() error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("Do error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, want <= %d", got, limit)
	}
	if got := pool.Stats().TotalSlow; got != 12 {
		t.Errorf("TotalSlow = %d, want 12", got)
	}
}

func TestWorkerPoolDoPropagatesError(t *testing.T) {
	pool := NewWorkerPool(DefaultPoolConfig())
	boom := errors.New("boom")

	if err := pool.Do(context.Background(), LaneFast, func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Do = %v, want %v", err, boom)
	}
	if got := pool.Stats().ActiveFast; got != 0 {
		t.Errorf("ActiveFast = %d, want 0 after Do", got)
	}
}

func TestWorkerPoolDefaults(t *testing.T) {
	stats := NewWorkerPool(PoolConfig{}).Stats()
	if stats.MaxFast != 100 {
		t.Errorf("MaxFast = %d, want 100", stats.MaxFast)
	}
	if stats.MaxSlow != 4 {
		t.Errorf("MaxSlow = %d, want 4", stats.MaxSlow)
	}
}
