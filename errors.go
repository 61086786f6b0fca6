// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import "errors"

// Launch validation errors. They are returned synchronously from Launch
// before any kernel body runs.
var (
	// ErrInvalidArgument is returned for a nil kernel or buffer.
	ErrInvalidArgument = errors.New("launch: invalid argument")

	// ErrArity is returned when the number of inputs does not match the kernel.
	ErrArity = errors.New("launch: wrong number of kernel inputs")

	// ErrBackendMismatch is returned when buffers of one launch live on
	// different backends, or on different device instances.
	ErrBackendMismatch = errors.New("launch: buffers on different backends")

	// ErrShapeMismatch is returned when buffers of one launch disagree on shape.
	ErrShapeMismatch = errors.New("launch: buffer shapes differ")

	// ErrDTypeMismatch is returned when buffers disagree on element type,
	// or the kernel has no body for the element type.
	ErrDTypeMismatch = errors.New("launch: element type mismatch")

	// ErrAliasedOutput is returned when the output buffer is also an input.
	ErrAliasedOutput = errors.New("launch: output buffer aliases an input")

	// ErrInvalidLaunchConfig is returned when a work group is not usable
	// on the selected backend.
	ErrInvalidLaunchConfig = errors.New("launch: invalid launch configuration")

	// ErrUnsupportedKernel is returned when the selected backend cannot
	// build the kernel, for example a device launch without WGSL.
	ErrUnsupportedKernel = errors.New("launch: kernel not supported by backend")

	// ErrInvalidShape is returned for an empty shape or a non-positive extent.
	ErrInvalidShape = errors.New("launch: invalid shape")
)

// Buffer state errors.
var (
	// ErrDeviceBufferNotReady is returned when a buffer is read or reused
	// while the launch writing it has not been waited on.
	ErrDeviceBufferNotReady = errors.New("launch: buffer not ready, wait on its pending launch")

	// ErrBufferBusy is returned when a buffer is overwritten or freed while
	// an in-flight launch still reads it.
	ErrBufferBusy = errors.New("launch: buffer in use by an in-flight launch")

	// ErrBufferFreed is returned for any use of a freed buffer.
	ErrBufferFreed = errors.New("launch: buffer freed")
)

// Execution errors. They resolve a Handle rather than fail Launch.
var (
	// ErrKernelFault is returned when a host kernel body panics.
	// The output buffer is poisoned and every read of it fails.
	ErrKernelFault = errors.New("launch: kernel fault")

	// ErrDeviceFault is returned when the device fails, times out or is lost.
	// A lost device rejects all further work.
	ErrDeviceFault = errors.New("launch: device fault")

	// ErrNoDevice is returned when a device buffer is requested and no
	// device backend is available.
	ErrNoDevice = errors.New("launch: no device backend")

	// ErrClosed is returned by a launcher after Close.
	ErrClosed = errors.New("launch: launcher closed")
)
