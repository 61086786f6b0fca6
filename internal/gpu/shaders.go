// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// compileWGSL validates src and compiles it to SPIR-V words.
func compileWGSL(src string) ([]uint32, error) {
	raw, err := naga.Compile(src)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("naga: SPIR-V size %d is not a multiple of 4", len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words, nil
}

// shaderSourceLocked picks the module source the backend consumes. Backends
// that translate WGSL themselves get the text; Vulkan and the software
// interpreter get the SPIR-V compiled here. A shared device of unknown
// backend gets WGSL, which every backend accepts.
func (d *Device) shaderSourceLocked(wgsl string, spirv []uint32) hal.ShaderSource {
	if d.external {
		return hal.ShaderSource{WGSL: wgsl}
	}
	switch d.backend {
	case gputypes.BackendVulkan, gputypes.BackendEmpty:
		return hal.ShaderSource{SPIRV: spirv}
	default:
		return hal.ShaderSource{WGSL: wgsl}
	}
}
