// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package parallel

import (
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool Creation Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		expected := runtime.GOMAXPROCS(0)
		if pool.Workers() != expected {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d (GOMAXPROCS)", n, pool.Workers(), expected)
		}
		pool.Close()
	}
}

// =============================================================================
// ExecuteAll Tests
// =============================================================================

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	numTasks := 100

	work := make([]func(), numTasks)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}

	if err := pool.ExecuteAll(work); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if counter.Load() != int64(numTasks) {
		t.Errorf("counter = %d, want %d", counter.Load(), numTasks)
	}
}

func TestWorkerPool_ExecuteAll_EveryItemOnce(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var mu sync.Mutex
	seen := make(map[int]int)

	work := make([]func(), 257)
	for i := range work {
		work[i] = func() {
			mu.Lock()
			seen[i]++
			mu.Unlock()
		}
	}

	if err := pool.ExecuteAll(work); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	for i := range work {
		if seen[i] != 1 {
			t.Errorf("item %d ran %d times, want 1", i, seen[i])
		}
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if err := pool.ExecuteAll(nil); err != nil {
		t.Errorf("ExecuteAll(nil) = %v", err)
	}
	if err := pool.ExecuteAll([]func(){}); err != nil {
		t.Errorf("ExecuteAll(empty) = %v", err)
	}
}

// =============================================================================
// Go Tests
// =============================================================================

func TestWorkerPool_Go(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	numTasks := 50
	done := make(chan error, 1)

	work := make([]func(), numTasks)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}

	if err := pool.Go(work, func(err error) { done <- err }); err != nil {
		t.Fatalf("Go: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("done(%v), want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for async work, counter = %d", counter.Load())
	}
	if counter.Load() != int64(numTasks) {
		t.Errorf("counter = %d, want %d", counter.Load(), numTasks)
	}
}

func TestWorkerPool_Go_DoneCalledOnce(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	var calls atomic.Int64
	work := make([]func(), 40)
	for i := range work {
		work[i] = func() { time.Sleep(time.Microsecond) }
	}
	if err := pool.ExecuteAll(work); err != nil {
		t.Fatal(err)
	}

	finished := make(chan struct{})
	if err := pool.Go(work, func(error) {
		calls.Add(1)
		close(finished)
	}); err != nil {
		t.Fatal(err)
	}
	<-finished
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("done called %d times, want 1", calls.Load())
	}
}

func TestWorkerPool_Go_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	called := false
	if err := pool.Go(nil, func(err error) { called = err == nil }); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("done was not called for empty work")
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(4)

	pool.Close()
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("Pool should not be running after close")
	}
}

func TestWorkerPool_CloseRunsQueuedWork(t *testing.T) {
	pool := NewWorkerPool(2)

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}

	done := make(chan error, 1)
	if err := pool.Go(work, func(err error) { done <- err }); err != nil {
		t.Fatal(err)
	}
	pool.Close()

	if err := <-done; err != nil {
		t.Errorf("done(%v), want nil", err)
	}
	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
}

func TestWorkerPool_OperationsAfterClose(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Close()

	var executed atomic.Bool
	work := []func(){func() { executed.Store(true) }}

	if err := pool.ExecuteAll(work); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("ExecuteAll after Close = %v, want ErrPoolClosed", err)
	}
	if err := pool.Go(work, func(error) { t.Error("done called on closed pool") }); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Go after Close = %v, want ErrPoolClosed", err)
	}

	time.Sleep(50 * time.Millisecond)
	if executed.Load() {
		t.Error("Work was executed on closed pool")
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestWorkerPool_Concurrent(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	numGoroutines := 10
	numTasksPerGoroutine := 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			work := make([]func(), numTasksPerGoroutine)
			for i := range work {
				work[i] = func() { counter.Add(1) }
			}
			if err := pool.ExecuteAll(work); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	expected := int64(numGoroutines * numTasksPerGoroutine)
	if counter.Load() != expected {
		t.Errorf("counter = %d, want %d", counter.Load(), expected)
	}
}

func TestWorkerPool_WorkStealing(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var fastCount, slowCount atomic.Int64

	// Every slow item lands on worker 0; the others must steal to keep up.
	work := make([]func(), 100)
	for i := range work {
		if i%4 == 0 && i < 40 {
			work[i] = func() {
				time.Sleep(5 * time.Millisecond)
				slowCount.Add(1)
			}
		} else {
			work[i] = func() { fastCount.Add(1) }
		}
	}

	start := time.Now()
	if err := pool.ExecuteAll(work); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)

	if slowCount.Load() != 10 {
		t.Errorf("slowCount = %d, want 10", slowCount.Load())
	}
	if fastCount.Load() != 90 {
		t.Errorf("fastCount = %d, want 90", fastCount.Load())
	}
	t.Logf("Elapsed time: %v", elapsed)
}

func TestWorkerPool_NoGoroutineLeak(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	baseline := runtime.NumGoroutine()

	for range 5 {
		pool := NewWorkerPool(4)
		work := make([]func(), 100)
		for j := range work {
			work[j] = func() {}
		}
		if err := pool.ExecuteAll(work); err != nil {
			t.Fatal(err)
		}
		pool.Close()
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	final := runtime.NumGoroutine()
	if final > baseline+2 {
		t.Errorf("goroutine count: baseline=%d, final=%d (leak detected)", baseline, final)
	}
}

func TestWorkerPool_QueuedWork(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	if pool.QueuedWork() != 0 {
		t.Errorf("initial QueuedWork() = %d, want 0", pool.QueuedWork())
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkWorkerPool_ExecuteAll(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(strconv.Itoa(n), func(b *testing.B) {
			pool := NewWorkerPool(0)
			defer pool.Close()

			work := make([]func(), n)
			for i := range work {
				work[i] = func() {}
			}

			for b.Loop() {
				_ = pool.ExecuteAll(work)
			}
		})
	}
}

func BenchmarkWorkerPool_vs_Goroutines(b *testing.B) {
	const n = 256
	b.Run("pool", func(b *testing.B) {
		pool := NewWorkerPool(0)
		defer pool.Close()
		work := make([]func(), n)
		for i := range work {
			work[i] = func() {}
		}
		for b.Loop() {
			_ = pool.ExecuteAll(work)
		}
	})
	b.Run("goroutines", func(b *testing.B) {
		for b.Loop() {
			var wg sync.WaitGroup
			wg.Add(n)
			for range n {
				go func() { wg.Done() }()
			}
			wg.Wait()
		}
	})
}
