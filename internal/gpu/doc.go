// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpu implements the launch device backend on gogpu/wgpu/hal.
//
// Kernels are rendered to WGSL from the elementwise template, validated and
// compiled to SPIR-V with gogpu/naga, and cached as compute pipelines keyed
// by kernel, element type and work group. All HAL backends are linked in
// through hal/allbackends; the backend is chosen by name at Init, with the
// pure-Go software backend as the last resort.
//
// # Dispatch
//
// Launches are executed in order by a single queue goroutine. For each
// launch it writes the grid extent to a uniform buffer, binds the inputs
// and the output, records one compute pass and polls the queue until the
// submission completes or Config.SubmitTimeout expires. A timeout or a lost
// device marks the Device as lost; every later launch and allocation fails
// with launch.ErrDeviceFault.
//
// # Binding layout
//
//	binding 0       uniform  Params{rows, cols, pad0, pad1: u32}
//	binding 1..n    storage, read        inputs a, b, ...
//	binding n+1     storage, read_write  dst
package gpu
