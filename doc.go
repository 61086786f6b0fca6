// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package launch runs elementwise kernels on the CPU or on a GPU with the
// same call.
//
// # Overview
//
// A Buffer is a dense array tagged Host or Device. A Kernel pairs a Go body
// for the host with a WGSL expression for the device. Launch picks the
// backend from the tag of the output buffer, computes the index space and
// returns a Handle without waiting:
//
//	a, _ := launch.Full(launch.Host, launch.Shape{4, 4}, launch.Float32, 1)
//	b, _ := launch.Full(launch.Host, launch.Shape{4, 4}, launch.Float32, 1)
//	c, _ := launch.NewHostBuffer(launch.Shape{4, 4}, launch.Float32)
//
//	h, err := launch.Launch(ctx, launch.Add, c, a, b)
//	if err != nil {
//	    return err // shape, tag or dtype mismatch; nothing ran
//	}
//	if err := h.Wait(ctx); err != nil {
//	    return err
//	}
//	values, _ := c.Float32s() // sixteen 2s
//
// Changing launch.Host to launch.Device runs the same kernel on the GPU.
// Device buffers need a device backend, registered by importing the gpu
// package:
//
//	import _ "github.com/gogpu/launch/gpu"
//
// # Ordering
//
// The output of a launch cannot be read, written or used by another launch
// until its handle has been waited on; such uses fail with
// ErrDeviceBufferNotReady even if the work has already finished. Inputs of
// an in-flight launch can be read and used as inputs again, but not
// overwritten or freed (ErrBufferBusy).
//
// # Index space
//
// The global extent equals the buffer shape. A work group is right aligned
// to the innermost dimensions; the number of groups per dimension is
// ceil(extent / group). Invocations past the extent are masked and never
// run. The device maps the innermost dimension to x and folds every
// leading dimension into y.
//
// # Errors
//
// Launch validates in a fixed order and returns errors synchronously:
// ErrInvalidArgument, ErrArity, ErrBufferFreed, ErrBackendMismatch,
// ErrShapeMismatch, ErrDTypeMismatch, ErrAliasedOutput,
// ErrInvalidLaunchConfig or ErrUnsupportedKernel, then
// ErrDeviceBufferNotReady and ErrBufferBusy. Failures during execution
// resolve the handle with ErrKernelFault or ErrDeviceFault and poison the
// output buffer. Nothing is retried.
//
// # Logging
//
// launch is silent by default. See SetLogger.
package launch
