// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cpuinfo reports the host CPU features relevant to kernel bodies.
package cpuinfo

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Features describes the SIMD support of the host CPU.
type Features struct {
	Architecture string
	HasSSE41     bool
	HasAVX       bool
	HasAVX2      bool
	HasAVX512    bool
	HasFMA       bool
	HasNEON      bool
	HasSVE       bool
}

// Detect reports the features of the current process.
func Detect() Features {
	return Features{
		Architecture: runtime.GOARCH,
		HasSSE41:     cpu.X86.HasSSE41,
		HasAVX:       cpu.X86.HasAVX,
		HasAVX2:      cpu.X86.HasAVX2,
		HasAVX512:    cpu.X86.HasAVX512F,
		HasFMA:       cpu.X86.HasFMA,
		HasNEON:      cpu.ARM64.HasASIMD,
		HasSVE:       cpu.ARM64.HasSVE,
	}
}

// List returns the names of the detected features, widest first.
func (f Features) List() []string {
	var out []string
	add := func(ok bool, name string) {
		if ok {
			out = append(out, name)
		}
	}
	add(f.HasAVX512, "avx512")
	add(f.HasAVX2, "avx2")
	add(f.HasAVX, "avx")
	add(f.HasFMA, "fma")
	add(f.HasSSE41, "sse4.1")
	add(f.HasSVE, "sve")
	add(f.HasNEON, "neon")
	return out
}

// String formats the architecture and the feature list.
func (f Features) String() string {
	list := f.List()
	if len(list) == 0 {
		return f.Architecture
	}
	return f.Architecture + " (" + strings.Join(list, ", ") + ")"
}
