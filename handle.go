// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Status is the state of a launch.
type Status uint8

const (
	// Pending means the launch has been submitted and has not finished.
	Pending Status = iota
	// Complete means the launch finished, successfully or not.
	Complete
)

// String returns the status name.
func (s Status) String() string {
	if s == Complete {
		return "complete"
	}
	return "pending"
}

// Handle tracks one asynchronous launch. It moves from Pending to Complete
// exactly once. Waiting on it makes the output buffer readable again.
//
// Handle is safe for concurrent use.
type Handle struct {
	kernel string
	tag    Tag
	out    *Buffer

	done      chan struct{}
	once      sync.Once
	err       error
	submitted time.Time
	completed time.Time

	waited atomic.Bool
}

func newHandle(kernel string, tag Tag, out *Buffer) *Handle {
	return &Handle{
		kernel:    kernel,
		tag:       tag,
		out:       out,
		done:      make(chan struct{}),
		submitted: time.Now(),
	}
}

// resolve records the result and wakes waiters. Only the first call counts.
func (h *Handle) resolve(err error) bool {
	resolved := false
	h.once.Do(func() {
		h.err = err
		h.completed = time.Now()
		close(h.done)
		resolved = true
	})
	return resolved
}

// Wait blocks until the launch completes or ctx is done, and returns the
// launch error. Cancelling ctx abandons the wait, not the launch.
//
// Wait is idempotent: once the launch has completed every call returns the
// same result. The first completed Wait releases the output buffer for
// reads and further launches.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
	default:
		select {
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if h.waited.CompareAndSwap(false, true) && h.out != nil {
		h.out.clearWriter(h)
	}
	return h.err
}

// Done returns a channel that is closed when the launch completes.
// Receiving from it does not release the output buffer; call Wait.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Status reports whether the launch has completed.
func (h *Handle) Status() Status {
	select {
	case <-h.done:
		return Complete
	default:
		return Pending
	}
}

// Err returns the launch error, or nil while the launch is pending.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Kernel returns the name of the launched kernel.
func (h *Handle) Kernel() string { return h.kernel }

// Tag returns the backend tag the launch ran on.
func (h *Handle) Tag() Tag { return h.tag }

// Elapsed returns the time from submission to completion, or zero while
// the launch is pending.
func (h *Handle) Elapsed() time.Duration {
	select {
	case <-h.done:
		return h.completed.Sub(h.submitted)
	default:
		return 0
	}
}

// Wait waits for every handle and joins their errors. Nil handles are
// skipped. If ctx ends first, the remaining handles are left pending and
// ctx.Err() is included in the result.
func Wait(ctx context.Context, handles ...*Handle) error {
	var errs []error
	for _, h := range handles {
		if h == nil {
			continue
		}
		if err := h.Wait(ctx); err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return errors.Join(errs...)
}
