// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
)

// Tag names the backend a buffer lives on.
type Tag uint8

const (
	// Host buffers live in process memory and run on the CPU worker pool.
	Host Tag = iota
	// Device buffers live in accelerator memory and run on a DeviceBackend.
	Device
)

// String returns the tag name.
func (t Tag) String() string {
	if t == Device {
		return "device"
	}
	return "host"
}

// Backend executes validated launches.
type Backend interface {
	// Name returns the backend name (e.g., "host", "wgpu/vulkan").
	Name() string

	// Check reports whether the backend can run kernel k over space for
	// element type dt. It returns ErrInvalidLaunchConfig for an unusable
	// work group and ErrUnsupportedKernel for a kernel it cannot build.
	// Check runs before any buffer is reserved.
	Check(k *Kernel, dt DType, space *IndexSpace) error

	// Submit queues d and returns without waiting. The backend must call
	// d.Complete exactly once, from any goroutine, when the work finishes.
	// If Submit returns an error, d.Complete must not be called.
	Submit(d *Dispatch) error
}

// DeviceStorage is accelerator memory owned by one device buffer.
type DeviceStorage interface {
	// Size returns the allocation size in bytes.
	Size() int

	// Upload copies src to the start of the allocation.
	Upload(src []byte) error

	// Download copies the allocation into dst.
	Download(dst []byte) error

	// Release frees the allocation.
	Release()
}

// DeviceBackend is an accelerator that owns device buffers.
//
// Implementations are provided by backend packages. The wgpu implementation
// registers itself on blank import:
//
//	import _ "github.com/gogpu/launch/gpu" // enables the device backend
type DeviceBackend interface {
	Backend

	// Init opens the device. Called once during registration.
	Init() error

	// Close waits for queued work and releases the device.
	Close()

	// Info describes the selected adapter.
	Info() gpucontext.AdapterInfo

	// Alloc returns zeroed storage of size bytes.
	Alloc(size int) (DeviceStorage, error)
}

// DeviceProviderAware is implemented by device backends that can reuse a
// device owned by another component instead of opening their own.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	deviceMu sync.RWMutex
	device   DeviceBackend
)

// RegisterDevice registers the device backend used by launchers that were
// not given one explicitly.
//
// Only one device can be registered. Subsequent calls replace the previous
// one and close it. Init is called during registration; if it fails the
// device is not registered and the error is returned.
func RegisterDevice(d DeviceBackend) error {
	if d == nil {
		return errors.New("launch: device must not be nil")
	}
	if err := d.Init(); err != nil {
		return err
	}
	propagateLogger(d, Logger())
	deviceMu.Lock()
	old := device
	device = d
	deviceMu.Unlock()
	if old != nil && old != d {
		old.Close()
	}
	Logger().Info("launch: device registered", "name", d.Name(), "adapter", d.Info().Name)
	return nil
}

// RegisteredDevice returns the registered device backend, or nil if none.
func RegisteredDevice() DeviceBackend {
	deviceMu.RLock()
	d := device
	deviceMu.RUnlock()
	return d
}

// SetDeviceProvider passes a device provider to the registered device
// backend so it shares an existing GPU device. It is a no-op when no device
// is registered or the device cannot share.
func SetDeviceProvider(provider any) error {
	d := RegisteredDevice()
	if d == nil {
		return nil
	}
	if pa, ok := d.(DeviceProviderAware); ok {
		return pa.SetDeviceProvider(provider)
	}
	return nil
}

// Dispatch is one validated launch handed to a Backend.
// Buffers are reserved for the dispatch until Complete is called.
type Dispatch struct {
	Kernel *Kernel
	DType  DType
	Space  *IndexSpace
	Out    *Buffer
	In     []*Buffer

	backend  Backend
	handle   *Handle
	observer func(LaunchEvent)
	onDone   func()
	done     atomic.Bool
}

// Complete finishes the dispatch with err. It releases the input buffers,
// poisons the output on error and resolves the launch handle. Calls after
// the first are ignored.
func (d *Dispatch) Complete(err error) {
	if !d.done.CompareAndSwap(false, true) {
		return
	}
	for _, b := range uniqueBuffers(d.In) {
		b.releaseReader()
	}
	if err != nil {
		d.Out.poison(err)
		Logger().Warn("launch: kernel failed", "kernel", d.Kernel.Name(), "backend", d.backend.Name(), "err", err)
	}
	d.handle.resolve(err)
	if d.observer != nil {
		d.observer(d.event())
	}
	if d.onDone != nil {
		d.onDone()
	}
}

func (d *Dispatch) event() LaunchEvent {
	return LaunchEvent{
		Kernel:    d.Kernel.Name(),
		Backend:   d.backend.Name(),
		Tag:       d.Out.Tag(),
		DType:     d.DType,
		Extent:    d.Space.Shape(),
		WorkGroup: d.Space.WorkGroup(),
		Groups:    d.Space.Groups(),
		Elements:  d.Space.Elements(),
		Masked:    d.Space.Masked(),
		Submitted: d.handle.submitted,
		Completed: d.handle.completed,
		Err:       d.handle.err,
	}
}

// uniqueBuffers drops repeated inputs so a buffer passed twice is
// reserved and released once.
func uniqueBuffers(bs []*Buffer) []*Buffer {
	out := make([]*Buffer, 0, len(bs))
	for _, b := range bs {
		dup := false
		for _, o := range out {
			if o == b {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, b)
		}
	}
	return out
}
