// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/launch"
	"github.com/gogpu/wgpu/hal"
)

// storage is a device buffer usable as any kernel binding.
type storage struct {
	dev      *Device
	buf      hal.Buffer
	size     uint64
	released atomic.Bool
}

var _ launch.DeviceStorage = (*storage)(nil)

// newStorageLocked allocates and zeroes a storage buffer. Requires d.mu.
func (d *Device) newStorageLocked(size uint64) (launch.DeviceStorage, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "launch_buffer", Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage buffer: %w", err)
	}
	if err := d.queue.WriteBuffer(buf, 0, make([]byte, size)); err != nil {
		d.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("zero storage buffer: %w", err)
	}
	d.live.Add(1)
	slogger().Debug("gpu: buffer allocated", "bytes", size)
	return &storage{dev: d, buf: buf, size: size}, nil
}

func (s *storage) Size() int { return int(s.size) }

// Upload writes src at offset 0.
func (s *storage) Upload(src []byte) error {
	if uint64(len(src)) > s.size {
		return fmt.Errorf("%w: upload of %d bytes into %d", launch.ErrInvalidArgument, len(src), s.size)
	}
	d := s.dev
	if d.lost.Load() {
		return fmt.Errorf("%w: device lost", launch.ErrDeviceFault)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue == nil || s.released.Load() {
		return launch.ErrBufferFreed
	}
	if err := d.queue.WriteBuffer(s.buf, 0, src); err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}
	return nil
}

// Download copies the buffer into dst through a mappable staging buffer.
func (s *storage) Download(dst []byte) error {
	if uint64(len(dst)) > s.size {
		return fmt.Errorf("%w: download of %d bytes from %d", launch.ErrInvalidArgument, len(dst), s.size)
	}
	d := s.dev
	if d.lost.Load() {
		return fmt.Errorf("%w: device lost", launch.ErrDeviceFault)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil || s.released.Load() {
		return launch.ErrBufferFreed
	}
	return d.readbackLocked(s.buf, dst)
}

// Release destroys the buffer. Calls after the first are no-ops.
func (s *storage) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	d := s.dev
	d.live.Add(-1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.DestroyBuffer(s.buf)
	}
}

// readbackLocked copies len(dst) bytes of src to the host. Requires d.mu.
func (d *Device) readbackLocked(src hal.Buffer, dst []byte) error {
	size := uint64(len(dst))
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "launch_staging", Size: size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "launch_readback"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("launch_readback"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(src, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	idx, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return d.submitError(err)
	}
	if err := d.waitLocked(idx); err != nil {
		return err
	}

	mapping, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return fmt.Errorf("map staging buffer: %w", err)
	}
	copy(dst, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := d.device.UnmapBuffer(staging); err != nil {
		slogger().Warn("gpu: unmap staging buffer", "err", err)
	}
	return nil
}
