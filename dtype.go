// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

// DType is the element type of a buffer. Every DType is 4 bytes wide and
// stored little-endian, which matches the WGSL scalar layout.
type DType uint8

const (
	Float32 DType = iota
	Int32
	Uint32
)

// Size returns the element size in bytes.
func (d DType) Size() int { return 4 }

// Valid reports whether d is a known element type.
func (d DType) Valid() bool { return d <= Uint32 }

// WGSL returns the WGSL scalar type name.
func (d DType) WGSL() string {
	switch d {
	case Float32:
		return "f32"
	case Int32:
		return "i32"
	case Uint32:
		return "u32"
	default:
		return ""
	}
}

// String returns a human-readable name.
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	default:
		return "DType(?)"
	}
}
