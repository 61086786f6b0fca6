// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/launch/internal/cpuinfo"
	"github.com/gogpu/launch/internal/parallel"
)

// maxHostGroup bounds the work group size on the host. A work group is
// one unit of scheduling, so larger groups only reduce parallelism.
const maxHostGroup = 1 << 20

// HostInfo describes the host backend.
type HostInfo struct {
	// Workers is the number of pool goroutines.
	Workers int
	// CPU is the architecture and detected SIMD features, e.g. "amd64 (avx2, fma)".
	CPU string
	// Features lists the detected SIMD features.
	Features []string
}

// hostBackend runs kernel bodies on a work-stealing worker pool.
type hostBackend struct {
	pool     *parallel.WorkerPool
	features cpuinfo.Features
}

func newHostBackend(workers int) *hostBackend {
	return &hostBackend{
		pool:     parallel.NewWorkerPool(workers),
		features: cpuinfo.Detect(),
	}
}

func (h *hostBackend) Name() string { return "host" }

func (h *hostBackend) info() HostInfo {
	return HostInfo{
		Workers:  h.pool.Workers(),
		CPU:      h.features.String(),
		Features: h.features.List(),
	}
}

func (h *hostBackend) Check(k *Kernel, _ DType, space *IndexSpace) error {
	if k.body == nil {
		return fmt.Errorf("%w: kernel %q has no host body", ErrUnsupportedKernel, k.name)
	}
	if n := space.GroupSize(); n > maxHostGroup {
		return fmt.Errorf("%w: host work group of %d exceeds %d", ErrInvalidLaunchConfig, n, maxHostGroup)
	}
	return nil
}

type kernelPanic struct{ value any }

// Submit splits the tiles of d into at most four work items per worker
// and queues them. A panicking body poisons the output with ErrKernelFault.
func (h *hostBackend) Submit(d *Dispatch) error {
	space := d.Space
	tiles := space.Tiles()
	items := min(tiles, h.pool.Workers()*4)

	out := newView(d.Out.hostData(), d.DType)
	in := make([]View, len(d.In))
	for i, b := range d.In {
		in[i] = newView(b.hostData(), d.DType)
	}
	body := d.Kernel.body

	var fault atomic.Pointer[kernelPanic]
	work := make([]func(), items)
	for w := range items {
		lo, hi := w*tiles/items, (w+1)*tiles/items
		work[w] = func() {
			defer func() {
				if r := recover(); r != nil {
					fault.CompareAndSwap(nil, &kernelPanic{value: r})
				}
			}()
			for t := lo; t < hi; t++ {
				if fault.Load() != nil {
					return
				}
				space.ForEach(space.Tile(t), func(idx Index) {
					body(idx, out, in)
				})
			}
		}
	}

	err := h.pool.Go(work, func(err error) {
		switch p := fault.Load(); {
		case p != nil:
			d.Complete(fmt.Errorf("%w: %s: %v", ErrKernelFault, d.Kernel.name, p.value))
		case err != nil:
			d.Complete(fmt.Errorf("%w: %s: %w", ErrKernelFault, d.Kernel.name, ErrClosed))
		default:
			d.Complete(nil)
		}
	})
	if errors.Is(err, parallel.ErrPoolClosed) {
		return ErrClosed
	}
	return err
}

func (h *hostBackend) close() { h.pool.Close() }
