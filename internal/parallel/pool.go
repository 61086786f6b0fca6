// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package parallel provides the work-stealing worker pool that runs host
// kernel launches.
package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned when work is submitted to a closed pool.
var ErrPoolClosed = errors.New("parallel: pool closed")

// WorkerPool is a fixed set of goroutines that execute work items.
//
// The pool distributes work items across workers, each with its own queue.
// Workers steal from other queues when their own is empty, which balances
// launches whose tiles take uneven time.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()

	// done signals workers to stop.
	done chan struct{}
	wg   sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return
		case work := <-myQueue:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			// Nothing to steal, block on own queue.
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case work := <-myQueue:
				work()
			}
		}
	}
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

// steal takes one work item from another worker's queue, or returns nil.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Go distributes work round-robin across the workers and returns without
// waiting. done is called once, from a worker goroutine, after every item
// has run. It receives ErrPoolClosed if the pool closed before all items
// were queued; the items that were not queued never run.
//
// Go returns ErrPoolClosed without calling done if the pool is already
// closed, and calls done(nil) immediately for empty work.
func (p *WorkerPool) Go(work []func(), done func(error)) error {
	if !p.running.Load() {
		return ErrPoolClosed
	}
	if len(work) == 0 {
		if done != nil {
			done(nil)
		}
		return nil
	}

	var (
		remaining atomic.Int64
		dropped   atomic.Bool
	)
	remaining.Store(int64(len(work)))
	finish := func() {
		if remaining.Add(-1) == 0 && done != nil {
			if dropped.Load() {
				done(ErrPoolClosed)
			} else {
				done(nil)
			}
		}
	}

	for i, fn := range work {
		wrapped := func() {
			defer finish()
			fn()
		}
		select {
		case p.workQueues[i%p.workers] <- wrapped:
		case <-p.done:
			dropped.Store(true)
			for range len(work) - i {
				finish()
			}
			return nil
		}
	}
	return nil
}

// ExecuteAll distributes work across the workers and waits for all of it.
func (p *WorkerPool) ExecuteAll(work []func()) error {
	ch := make(chan error, 1)
	if err := p.Go(work, func(err error) { ch <- err }); err != nil {
		return err
	}
	return <-ch
}

// Close stops accepting work, runs everything already queued and stops
// the workers. Close is safe to call multiple times, but must not race
// with Go: an item queued after the workers drained would never run.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// QueuedWork returns the total number of work items currently queued.
// This is an approximation as queues can change while iterating.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}
