// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"encoding/binary"
	"math"
)

// View is the element accessor a host kernel body receives for one buffer.
// Elements are addressed by linear index. Accessors do not check the
// element type; a body is only called with the dtypes it was built for.
type View struct {
	data  []byte
	dtype DType
}

func newView(data []byte, dt DType) View { return View{data: data, dtype: dt} }

// DType returns the element type.
func (v View) DType() DType { return v.dtype }

// Len returns the number of elements.
func (v View) Len() int { return len(v.data) / 4 }

// Float32 returns element i as float32.
func (v View) Float32(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v.data[i*4:]))
}

// SetFloat32 stores x at element i.
func (v View) SetFloat32(i int, x float32) {
	binary.LittleEndian.PutUint32(v.data[i*4:], math.Float32bits(x))
}

// Int32 returns element i as int32.
func (v View) Int32(i int) int32 {
	return int32(binary.LittleEndian.Uint32(v.data[i*4:]))
}

// SetInt32 stores x at element i.
func (v View) SetInt32(i int, x int32) {
	binary.LittleEndian.PutUint32(v.data[i*4:], uint32(x))
}

// Uint32 returns element i as uint32.
func (v View) Uint32(i int) uint32 {
	return binary.LittleEndian.Uint32(v.data[i*4:])
}

// SetUint32 stores x at element i.
func (v View) SetUint32(i int, x uint32) {
	binary.LittleEndian.PutUint32(v.data[i*4:], x)
}

func float32sToBytes(src []float32) []byte {
	b := make([]byte, len(src)*4)
	for i, x := range src {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
	return b
}

func int32sToBytes(src []int32) []byte {
	b := make([]byte, len(src)*4)
	for i, x := range src {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(x))
	}
	return b
}

func uint32sToBytes(src []uint32) []byte {
	b := make([]byte, len(src)*4)
	for i, x := range src {
		binary.LittleEndian.PutUint32(b[i*4:], x)
	}
	return b
}

func bytesToFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func bytesToInt32s(b []byte) []int32 {
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func bytesToUint32s(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// scalarBytes encodes v as one element of dt.
func scalarBytes(dt DType, v float64) [4]byte {
	var b [4]byte
	switch dt {
	case Float32:
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
	case Int32:
		binary.LittleEndian.PutUint32(b[:], uint32(int32(v)))
	case Uint32:
		// Negative values wrap.
		binary.LittleEndian.PutUint32(b[:], uint32(int64(v)))
	}
	return b
}
