// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"context"
	"fmt"
	"sync"
)

// LaunchConfig is the per-launch execution configuration.
type LaunchConfig struct {
	// WorkGroup is right aligned to the innermost buffer dimensions.
	// Nil selects the launcher default.
	WorkGroup []int
}

// Launcher validates launches and routes them to the Host backend or to
// the Device backend that owns the buffers.
//
// Launcher is safe for concurrent use.
type Launcher struct {
	host      *hostBackend
	device    DeviceBackend
	observer  func(LaunchEvent)
	workGroup []int

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// NewLauncher creates a launcher with its own host worker pool.
func NewLauncher(opts ...LauncherOption) *Launcher {
	o := defaultLauncherOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Launcher{
		host:      newHostBackend(o.workers),
		device:    o.device,
		observer:  o.observer,
		workGroup: o.workGroup,
	}
}

// Device returns the device backend used for new device buffers: the one
// set with WithDevice, else the registered one. It returns nil if there is
// none.
func (l *Launcher) Device() DeviceBackend {
	if l.device != nil {
		return l.device
	}
	return RegisteredDevice()
}

// HostInfo describes the host backend.
func (l *Launcher) HostInfo() HostInfo { return l.host.info() }

// Launch runs k elementwise over the shape of out with the default work
// group. See LaunchWith.
func (l *Launcher) Launch(ctx context.Context, k *Kernel, out *Buffer, in ...*Buffer) (*Handle, error) {
	return l.LaunchWith(ctx, LaunchConfig{}, k, out, in...)
}

// LaunchWith validates the launch, reserves the buffers and submits the
// work to the backend selected by the tag of out. It returns without
// waiting for the kernel; errors are returned before any element runs.
//
// out stays unreadable until the returned handle is waited on. The inputs
// cannot be written or freed until the launch completes.
func (l *Launcher) LaunchWith(ctx context.Context, cfg LaunchConfig, k *Kernel, out *Buffer, in ...*Buffer) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate(k, out, in); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}

	var be Backend = l.host
	if out.tag == Device {
		be = out.owner
	}

	wg := cfg.WorkGroup
	if wg == nil {
		wg = l.workGroup
	}
	space, err := NewIndexSpace(out.shape, wg)
	if err != nil {
		return nil, err
	}
	if err := be.Check(k, out.dtype, space); err != nil {
		return nil, err
	}

	h := newHandle(k.name, out.tag, out)
	d := &Dispatch{
		Kernel:   k,
		DType:    out.dtype,
		Space:    space,
		Out:      out,
		In:       append([]*Buffer(nil), in...),
		backend:  be,
		handle:   h,
		observer: l.observer,
	}
	if err := reserve(h, out, in); err != nil {
		return nil, err
	}
	if out.tag == Host {
		l.inflight.Add(1)
		d.onDone = l.inflight.Done
	}
	if err := be.Submit(d); err != nil {
		unreserve(h, out, in)
		if d.onDone != nil {
			l.inflight.Done()
		}
		return nil, err
	}

	Logger().Debug("launch: submitted",
		"kernel", k.name,
		"backend", be.Name(),
		"dtype", out.dtype,
		"extent", out.shape,
		"wg", Shape(space.wg),
		"groups", Shape(space.groups),
		"masked", space.Masked())
	return h, nil
}

// validate performs the checks that need no backend, in a fixed order.
func validate(k *Kernel, out *Buffer, in []*Buffer) error {
	if k == nil {
		return fmt.Errorf("%w: nil kernel", ErrInvalidArgument)
	}
	if out == nil {
		return fmt.Errorf("%w: nil output buffer", ErrInvalidArgument)
	}
	for i, b := range in {
		if b == nil {
			return fmt.Errorf("%w: nil input %d", ErrInvalidArgument, i)
		}
	}
	if len(in) != k.arity {
		return fmt.Errorf("%w: kernel %q takes %d inputs, got %d", ErrArity, k.name, k.arity, len(in))
	}
	if out.isFreed() {
		return fmt.Errorf("output: %w", ErrBufferFreed)
	}
	for i, b := range in {
		if b.isFreed() {
			return fmt.Errorf("input %d: %w", i, ErrBufferFreed)
		}
	}
	for i, b := range in {
		if b.tag != out.tag {
			return fmt.Errorf("%w: input %d is %s, output is %s", ErrBackendMismatch, i, b.tag, out.tag)
		}
		if b.owner != out.owner {
			return fmt.Errorf("%w: input %d belongs to another device", ErrBackendMismatch, i)
		}
	}
	for i, b := range in {
		if !b.shape.Equal(out.shape) {
			return fmt.Errorf("%w: input %d is %v, output is %v", ErrShapeMismatch, i, b.shape, out.shape)
		}
	}
	for i, b := range in {
		if b.dtype != out.dtype {
			return fmt.Errorf("%w: input %d is %s, output is %s", ErrDTypeMismatch, i, b.dtype, out.dtype)
		}
	}
	if !k.Supports(out.dtype) {
		return fmt.Errorf("%w: kernel %q does not accept %s", ErrDTypeMismatch, k.name, out.dtype)
	}
	for i, b := range in {
		if b == out {
			return fmt.Errorf("%w: input %d", ErrAliasedOutput, i)
		}
	}
	return nil
}

// NewBuffer creates a zeroed buffer on the backend named by tag.
// Device buffers are allocated on Device(); ErrNoDevice is returned if
// there is none.
func (l *Launcher) NewBuffer(tag Tag, shape Shape, dt DType) (*Buffer, error) {
	var dev DeviceBackend
	if tag == Device {
		dev = l.Device()
	}
	return newBuffer(tag, shape, dt, dev)
}

// NewHostBuffer creates a zeroed host buffer.
func (l *Launcher) NewHostBuffer(shape Shape, dt DType) (*Buffer, error) {
	return l.NewBuffer(Host, shape, dt)
}

// NewDeviceBuffer creates a zeroed device buffer.
func (l *Launcher) NewDeviceBuffer(shape Shape, dt DType) (*Buffer, error) {
	return l.NewBuffer(Device, shape, dt)
}

// Full creates a buffer with every element set to v.
func (l *Launcher) Full(tag Tag, shape Shape, dt DType, v float64) (*Buffer, error) {
	b, err := l.NewBuffer(tag, shape, dt)
	if err != nil {
		return nil, err
	}
	if err := b.Fill(v); err != nil {
		_ = b.Free()
		return nil, err
	}
	return b, nil
}

// FromFloat32s creates a Float32 buffer holding data.
func (l *Launcher) FromFloat32s(tag Tag, shape Shape, data []float32) (*Buffer, error) {
	return fromSlice(l, tag, shape, Float32, data, (*Buffer).CopyFromFloat32s)
}

// FromInt32s creates an Int32 buffer holding data.
func (l *Launcher) FromInt32s(tag Tag, shape Shape, data []int32) (*Buffer, error) {
	return fromSlice(l, tag, shape, Int32, data, (*Buffer).CopyFromInt32s)
}

// FromUint32s creates a Uint32 buffer holding data.
func (l *Launcher) FromUint32s(tag Tag, shape Shape, data []uint32) (*Buffer, error) {
	return fromSlice(l, tag, shape, Uint32, data, (*Buffer).CopyFromUint32s)
}

func fromSlice[T any](l *Launcher, tag Tag, shape Shape, dt DType, data []T, copyFrom func(*Buffer, []T) error) (*Buffer, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}
	b, err := l.NewBuffer(tag, shape, dt)
	if err != nil {
		return nil, err
	}
	if err := copyFrom(b, data); err != nil {
		_ = b.Free()
		return nil, err
	}
	return b, nil
}

// Close waits for in-flight host launches and stops the host pool.
// The device backend is not closed. Launches after Close fail with
// ErrClosed. Close is safe to call multiple times.
func (l *Launcher) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.inflight.Wait()
	l.host.close()
}

var (
	defaultOnce     sync.Once
	defaultLauncher *Launcher
)

// Default returns the package launcher used by the package-level
// functions. It is created on first use and uses the registered device.
func Default() *Launcher {
	defaultOnce.Do(func() {
		defaultLauncher = NewLauncher()
	})
	return defaultLauncher
}

// Launch runs k on the default launcher.
func Launch(ctx context.Context, k *Kernel, out *Buffer, in ...*Buffer) (*Handle, error) {
	return Default().Launch(ctx, k, out, in...)
}

// LaunchWith runs k on the default launcher with cfg.
func LaunchWith(ctx context.Context, cfg LaunchConfig, k *Kernel, out *Buffer, in ...*Buffer) (*Handle, error) {
	return Default().LaunchWith(ctx, cfg, k, out, in...)
}

// NewBuffer creates a zeroed buffer with the default launcher.
func NewBuffer(tag Tag, shape Shape, dt DType) (*Buffer, error) {
	return Default().NewBuffer(tag, shape, dt)
}

// NewHostBuffer creates a zeroed host buffer.
func NewHostBuffer(shape Shape, dt DType) (*Buffer, error) {
	return Default().NewHostBuffer(shape, dt)
}

// NewDeviceBuffer creates a zeroed buffer on the registered device.
func NewDeviceBuffer(shape Shape, dt DType) (*Buffer, error) {
	return Default().NewDeviceBuffer(shape, dt)
}

// Full creates a filled buffer with the default launcher.
func Full(tag Tag, shape Shape, dt DType, v float64) (*Buffer, error) {
	return Default().Full(tag, shape, dt, v)
}

// FromFloat32s creates a Float32 buffer with the default launcher.
func FromFloat32s(tag Tag, shape Shape, data []float32) (*Buffer, error) {
	return Default().FromFloat32s(tag, shape, data)
}

// FromInt32s creates an Int32 buffer with the default launcher.
func FromInt32s(tag Tag, shape Shape, data []int32) (*Buffer, error) {
	return Default().FromInt32s(tag, shape, data)
}

// FromUint32s creates a Uint32 buffer with the default launcher.
func FromUint32s(tag Tag, shape Shape, data []uint32) (*Buffer, error) {
	return Default().FromUint32s(tag, shape, data)
}
