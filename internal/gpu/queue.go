// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/launch"
	"github.com/gogpu/wgpu/hal"
)

// paramsSize is the size of the Params uniform: rows, cols and two pads.
const paramsSize = 16

// start launches the queue goroutine. Must not be called with d.mu held.
func (d *Device) start() {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	if d.running {
		return
	}
	d.jobs = make(chan *launch.Dispatch, d.cfg.QueueDepth)
	d.quit = make(chan struct{})
	d.running = true
	d.wg.Add(1)
	go d.loop(d.jobs, d.quit)
}

// stop rejects new launches, runs the queued ones and waits for the queue
// goroutine to exit.
func (d *Device) stop() {
	d.subMu.Lock()
	if !d.running {
		d.subMu.Unlock()
		return
	}
	d.running = false
	close(d.quit)
	d.subMu.Unlock()
	d.wg.Wait()
}

// Submit queues a validated launch. It blocks only while the queue is full.
func (d *Device) Submit(job *launch.Dispatch) error {
	if d.lost.Load() {
		return fmt.Errorf("%w: device lost", launch.ErrDeviceFault)
	}
	if _, ok := storageOf(job.Out); !ok {
		return fmt.Errorf("%w: output is not a buffer of %s", launch.ErrBackendMismatch, d.Name())
	}
	for i, b := range job.In {
		if _, ok := storageOf(b); !ok {
			return fmt.Errorf("%w: input %d is not a buffer of %s", launch.ErrBackendMismatch, i, d.Name())
		}
	}

	d.subMu.RLock()
	defer d.subMu.RUnlock()
	if !d.running {
		return launch.ErrClosed
	}
	d.jobs <- job
	return nil
}

func (d *Device) loop(jobs <-chan *launch.Dispatch, quit <-chan struct{}) {
	defer d.wg.Done()
	for {
		select {
		case job := <-jobs:
			d.execute(job)
		case <-quit:
			for {
				select {
				case job := <-jobs:
					d.execute(job)
				default:
					return
				}
			}
		}
	}
}

// execute runs one launch and completes it. Any failure is a device fault.
func (d *Device) execute(job *launch.Dispatch) {
	if d.lost.Load() {
		job.Complete(fmt.Errorf("%w: device lost", launch.ErrDeviceFault))
		return
	}
	start := time.Now()
	err := d.run(job)
	if err != nil {
		if !errors.Is(err, launch.ErrDeviceFault) {
			err = fmt.Errorf("%w: %s: %w", launch.ErrDeviceFault, job.Kernel.Name(), err)
		}
		job.Complete(err)
		return
	}
	slogger().Debug("gpu: launch complete", "kernel", job.Kernel.Name(), "dtype", job.DType, "elapsed", time.Since(start))
	job.Complete(nil)
}

func (d *Device) run(job *launch.Dispatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return launch.ErrNoDevice
	}

	g := job.Space.Grid2D()
	p, err := d.pipelineLocked(job.Kernel, job.DType, g.GroupX, g.GroupY)
	if err != nil {
		return err
	}

	params, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "launch_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create params buffer: %w", err)
	}
	defer d.device.DestroyBuffer(params)
	if err := d.queue.WriteBuffer(params, 0, makeParams(g.Rows, g.Cols)); err != nil {
		return fmt.Errorf("write params: %w", err)
	}

	entries := make([]gputypes.BindGroupEntry, 0, len(job.In)+2)
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  0,
		Resource: gputypes.BufferBinding{Buffer: params.NativeHandle(), Offset: 0, Size: paramsSize},
	})
	for i, b := range job.In {
		s, _ := storageOf(b)
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1), //nolint:gosec // arity <= 7
			Resource: gputypes.BufferBinding{Buffer: s.buf.NativeHandle(), Offset: 0, Size: s.size},
		})
	}
	out, _ := storageOf(job.Out)
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  uint32(len(job.In) + 1), //nolint:gosec // arity <= 7
		Resource: gputypes.BufferBinding{Buffer: out.buf.NativeHandle(), Offset: 0, Size: out.size},
	})

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: job.Kernel.Name() + "_bind", Layout: p.bindLayout, Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: job.Kernel.Name() + "_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(job.Kernel.Name()); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: job.Kernel.Name() + "_pass"})
	pass.SetPipeline(p.compute)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(uint32(g.DispatchX), uint32(g.DispatchY), 1) //nolint:gosec // bounded by Check
	pass.End()
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	idx, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return d.submitError(err)
	}
	return d.waitLocked(idx)
}

// waitLocked polls until submission idx completes or the submit timeout
// expires. A timeout loses the device. Requires d.mu.
func (d *Device) waitLocked(idx uint64) error {
	deadline := time.Now().Add(d.cfg.SubmitTimeout)
	for d.queue.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return d.fault(fmt.Errorf("submission %d not complete after %v", idx, d.cfg.SubmitTimeout))
		}
		time.Sleep(d.cfg.PollInterval)
	}
	return nil
}

// fault marks the device lost for timeouts and HAL device loss and wraps
// err as a device fault.
func (d *Device) fault(err error) error {
	d.markLost(err)
	return fmt.Errorf("%w: %w", launch.ErrDeviceFault, err)
}

// submitError loses the device only when the HAL reports it lost.
func (d *Device) submitError(err error) error {
	if errors.Is(err, hal.ErrDeviceLost) {
		return d.fault(fmt.Errorf("submit: %w", err))
	}
	return fmt.Errorf("submit: %w", err)
}

func makeParams(rows, cols int) []byte {
	b := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(rows)) //nolint:gosec // bounded by Check
	binary.LittleEndian.PutUint32(b[4:], uint32(cols)) //nolint:gosec // bounded by Check
	return b
}

func storageOf(b *launch.Buffer) (*storage, bool) {
	s, ok := b.DeviceStorage().(*storage)
	return s, ok && s != nil
}
