// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

var bufferIDs atomic.Uint64

// Buffer is a dense array of one element type that lives on the Host or on
// a Device. All buffers of one launch share shape, element type and tag.
//
// A buffer written by a launch is not readable until the launch handle has
// been waited on. A buffer read by an in-flight launch cannot be written or
// freed until that launch completes.
//
// Buffer is safe for concurrent use.
type Buffer struct {
	id    uint64
	tag   Tag
	shape Shape
	dtype DType
	owner DeviceBackend

	mu      sync.Mutex
	host    []byte
	dev     DeviceStorage
	writer  *Handle
	readers int
	fault   error
	freed   bool
}

func newBuffer(tag Tag, shape Shape, dt DType, dev DeviceBackend) (*Buffer, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: unknown dtype %d", ErrInvalidArgument, dt)
	}
	b := &Buffer{
		id:    bufferIDs.Add(1),
		tag:   tag,
		shape: shape.Clone(),
		dtype: dt,
	}
	size := shape.NumElements() * dt.Size()
	switch tag {
	case Host:
		b.host = make([]byte, size)
	case Device:
		if dev == nil {
			return nil, ErrNoDevice
		}
		s, err := dev.Alloc(size)
		if err != nil {
			return nil, fmt.Errorf("launch: alloc %d bytes on %s: %w", size, dev.Name(), err)
		}
		b.dev = s
		b.owner = dev
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrInvalidArgument, tag)
	}
	Logger().Debug("launch: buffer created", "tag", tag, "shape", b.shape, "dtype", dt, "bytes", size)
	return b, nil
}

// Tag returns the backend the buffer lives on.
func (b *Buffer) Tag() Tag { return b.tag }

// Shape returns a copy of the buffer shape.
func (b *Buffer) Shape() Shape { return b.shape.Clone() }

// DType returns the element type.
func (b *Buffer) DType() DType { return b.dtype }

// Len returns the number of elements.
func (b *Buffer) Len() int { return b.shape.NumElements() }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int { return b.Len() * b.dtype.Size() }

// Owner returns the device backend that allocated the buffer, or nil for
// host buffers.
func (b *Buffer) Owner() DeviceBackend { return b.owner }

// DeviceStorage returns the device allocation, or nil for host buffers.
// Device backends use it to bind the buffer in a dispatch.
func (b *Buffer) DeviceStorage() DeviceStorage { return b.dev }

// Ready reports whether the buffer can be read: it is not freed, not
// poisoned and has no unwaited writer.
func (b *Buffer) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.freed && b.writer == nil && b.fault == nil
}

// Bytes returns a copy of the raw little-endian contents.
func (b *Buffer) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked()
}

// Float32s returns a copy of the contents of a Float32 buffer.
func (b *Buffer) Float32s() ([]float32, error) {
	raw, err := b.readAs(Float32)
	if err != nil {
		return nil, err
	}
	return bytesToFloat32s(raw), nil
}

// Int32s returns a copy of the contents of an Int32 buffer.
func (b *Buffer) Int32s() ([]int32, error) {
	raw, err := b.readAs(Int32)
	if err != nil {
		return nil, err
	}
	return bytesToInt32s(raw), nil
}

// Uint32s returns a copy of the contents of a Uint32 buffer.
func (b *Buffer) Uint32s() ([]uint32, error) {
	raw, err := b.readAs(Uint32)
	if err != nil {
		return nil, err
	}
	return bytesToUint32s(raw), nil
}

func (b *Buffer) readAs(dt DType) ([]byte, error) {
	if b.dtype != dt {
		return nil, fmt.Errorf("%w: buffer is %s, read as %s", ErrDTypeMismatch, b.dtype, dt)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked()
}

func (b *Buffer) readLocked() ([]byte, error) {
	switch {
	case b.freed:
		return nil, ErrBufferFreed
	case b.writer != nil:
		return nil, fmt.Errorf("read %s buffer %v: %w", b.tag, b.shape, ErrDeviceBufferNotReady)
	case b.fault != nil:
		return nil, fmt.Errorf("read %s buffer %v: %w", b.tag, b.shape, b.fault)
	}
	out := make([]byte, b.Size())
	if b.tag == Host {
		copy(out, b.host)
		return out, nil
	}
	if err := b.dev.Download(out); err != nil {
		return nil, fmt.Errorf("launch: download: %w", err)
	}
	return out, nil
}

// CopyFromFloat32s overwrites a Float32 buffer with src.
func (b *Buffer) CopyFromFloat32s(src []float32) error {
	if err := b.checkWrite(Float32, len(src)); err != nil {
		return err
	}
	return b.write(float32sToBytes(src))
}

// CopyFromInt32s overwrites an Int32 buffer with src.
func (b *Buffer) CopyFromInt32s(src []int32) error {
	if err := b.checkWrite(Int32, len(src)); err != nil {
		return err
	}
	return b.write(int32sToBytes(src))
}

// CopyFromUint32s overwrites a Uint32 buffer with src.
func (b *Buffer) CopyFromUint32s(src []uint32) error {
	if err := b.checkWrite(Uint32, len(src)); err != nil {
		return err
	}
	return b.write(uint32sToBytes(src))
}

// Fill sets every element to v converted to the buffer element type.
func (b *Buffer) Fill(v float64) error {
	elem := scalarBytes(b.dtype, v)
	raw := make([]byte, b.Size())
	for i := 0; i < len(raw); i += len(elem) {
		copy(raw[i:], elem[:])
	}
	return b.write(raw)
}

func (b *Buffer) checkWrite(dt DType, n int) error {
	if b.dtype != dt {
		return fmt.Errorf("%w: buffer is %s, written as %s", ErrDTypeMismatch, b.dtype, dt)
	}
	if n != b.Len() {
		return fmt.Errorf("%w: %d values for buffer %v", ErrShapeMismatch, n, b.shape)
	}
	return nil
}

// write replaces the contents. A full overwrite clears a previous fault.
func (b *Buffer) write(raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.freed:
		return ErrBufferFreed
	case b.writer != nil:
		return fmt.Errorf("write %s buffer %v: %w", b.tag, b.shape, ErrDeviceBufferNotReady)
	case b.readers > 0:
		return fmt.Errorf("write %s buffer %v: %w", b.tag, b.shape, ErrBufferBusy)
	}
	if b.tag == Host {
		copy(b.host, raw)
	} else if err := b.dev.Upload(raw); err != nil {
		return fmt.Errorf("launch: upload: %w", err)
	}
	b.fault = nil
	return nil
}

// Free releases the buffer storage. Free is idempotent. A buffer that an
// unfinished launch reads or writes cannot be freed.
func (b *Buffer) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return nil
	}
	if b.readers > 0 || (b.writer != nil && b.writer.Status() == Pending) {
		return fmt.Errorf("free %s buffer %v: %w", b.tag, b.shape, ErrBufferBusy)
	}
	if b.dev != nil {
		b.dev.Release()
		b.dev = nil
	}
	b.host = nil
	b.writer = nil
	b.freed = true
	return nil
}

// CopyBuffer copies src into dst. The buffers may live on different
// backends but must agree on shape and element type.
func CopyBuffer(dst, src *Buffer) error {
	if dst == nil || src == nil {
		return ErrInvalidArgument
	}
	if dst == src {
		return nil
	}
	if !dst.shape.Equal(src.shape) {
		return fmt.Errorf("%w: copy %v to %v", ErrShapeMismatch, src.shape, dst.shape)
	}
	if dst.dtype != src.dtype {
		return fmt.Errorf("%w: copy %s to %s", ErrDTypeMismatch, src.dtype, dst.dtype)
	}
	raw, err := src.Bytes()
	if err != nil {
		return err
	}
	return dst.write(raw)
}

func (b *Buffer) isFreed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.freed
}

// hostData returns the host storage. Only valid while the buffer is
// reserved by a dispatch.
func (b *Buffer) hostData() []byte { return b.host }

func (b *Buffer) clearWriter(h *Handle) {
	b.mu.Lock()
	if b.writer == h {
		b.writer = nil
	}
	b.mu.Unlock()
}

func (b *Buffer) releaseReader() {
	b.mu.Lock()
	if b.readers > 0 {
		b.readers--
	}
	b.mu.Unlock()
}

func (b *Buffer) poison(err error) {
	b.mu.Lock()
	b.fault = err
	b.mu.Unlock()
}

// reserve marks out as written by h and every input as read, or fails
// without changing any buffer. Buffers are locked in id order.
func reserve(h *Handle, out *Buffer, in []*Buffer) error {
	inputs := uniqueBuffers(in)
	all := append(slices.Clone(inputs), out)
	slices.SortFunc(all, func(x, y *Buffer) int { return cmp.Compare(x.id, y.id) })
	for _, b := range all {
		b.mu.Lock()
	}
	defer func() {
		for _, b := range all {
			b.mu.Unlock()
		}
	}()

	for i, b := range inputs {
		switch {
		case b.freed:
			return fmt.Errorf("input %d: %w", i, ErrBufferFreed)
		case b.writer != nil:
			return fmt.Errorf("input %d: %w", i, ErrDeviceBufferNotReady)
		case b.fault != nil:
			return fmt.Errorf("input %d: %w", i, b.fault)
		}
	}
	switch {
	case out.freed:
		return fmt.Errorf("output: %w", ErrBufferFreed)
	case out.writer != nil:
		return fmt.Errorf("output: %w", ErrDeviceBufferNotReady)
	case out.readers > 0:
		return fmt.Errorf("output: %w", ErrBufferBusy)
	}

	for _, b := range inputs {
		b.readers++
	}
	out.writer = h
	out.fault = nil
	return nil
}

// unreserve undoes reserve after a failed submit.
func unreserve(h *Handle, out *Buffer, in []*Buffer) {
	for _, b := range uniqueBuffers(in) {
		b.releaseReader()
	}
	out.clearWriter(h)
}
