// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"errors"
	"slices"
	"testing"
)

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{nil, 0},
		{Shape{7}, 7},
		{Shape{4, 4}, 16},
		{Shape{2, 3, 5}, 30},
	}
	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		ok    bool
	}{
		{"empty", Shape{}, false},
		{"nil", nil, false},
		{"zero dim", Shape{4, 0}, false},
		{"negative dim", Shape{-1}, false},
		{"vector", Shape{1}, true},
		{"matrix", Shape{3, 5}, true},
		{"at limit", Shape{MaxElements}, true},
		{"over limit", Shape{MaxElements + 1}, false},
		{"product over limit", Shape{MaxElements/2 + 1, 2}, false},
		{"product overflows", Shape{MaxElements, MaxElements, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidShape) {
				t.Errorf("Validate() = %v, want ErrInvalidShape", err)
			}
		})
	}
}

func TestShapeEqualAndClone(t *testing.T) {
	s := Shape{2, 3}
	c := s.Clone()
	if !s.Equal(c) {
		t.Fatal("clone should equal original")
	}
	c[0] = 9
	if s[0] != 2 {
		t.Error("Clone must not share storage")
	}
	if s.Equal(Shape{2, 3, 1}) {
		t.Error("shapes of different rank must differ")
	}
	if Shape(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestShapeStridesAndUnravel(t *testing.T) {
	s := Shape{2, 3, 4}
	if got, want := s.Strides(), []int{12, 4, 1}; !slices.Equal(got, want) {
		t.Errorf("Strides() = %v, want %v", got, want)
	}
	for linear := range s.NumElements() {
		c := s.Unravel(linear, nil)
		back := c[0]*12 + c[1]*4 + c[2]
		if back != linear {
			t.Errorf("Unravel(%d) = %v, round trip %d", linear, c, back)
		}
	}
	if got := s.Unravel(23, make([]int, 0, 3)); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("Unravel(23) = %v, want [1 2 3]", got)
	}
}

func TestShapeString(t *testing.T) {
	if got := (Shape{4, 4}).String(); got != "(4, 4)" {
		t.Errorf("String() = %q, want %q", got, "(4, 4)")
	}
	if got := (Shape{1}).String(); got != "(1)" {
		t.Errorf("String() = %q, want %q", got, "(1)")
	}
}

func TestDType(t *testing.T) {
	tests := []struct {
		dt   DType
		name string
		wgsl string
	}{
		{Float32, "float32", "f32"},
		{Int32, "int32", "i32"},
		{Uint32, "uint32", "u32"},
	}
	for _, tt := range tests {
		if !tt.dt.Valid() || tt.dt.Size() != 4 {
			t.Errorf("%v: Valid/Size wrong", tt.dt)
		}
		if tt.dt.String() != tt.name || tt.dt.WGSL() != tt.wgsl {
			t.Errorf("%v: String() = %q, WGSL() = %q", tt.dt, tt.dt.String(), tt.dt.WGSL())
		}
	}
	bad := DType(9)
	if bad.Valid() || bad.WGSL() != "" {
		t.Error("unknown dtype should be invalid")
	}
}

func TestViewAccessors(t *testing.T) {
	v := newView(make([]byte, 12), Float32)
	if v.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", v.Len())
	}
	v.SetFloat32(1, 2.5)
	if got := v.Float32(1); got != 2.5 {
		t.Errorf("Float32(1) = %v, want 2.5", got)
	}
	v.SetInt32(0, -7)
	if got := v.Int32(0); got != -7 {
		t.Errorf("Int32(0) = %v, want -7", got)
	}
	v.SetUint32(2, 0xdeadbeef)
	if got := v.Uint32(2); got != 0xdeadbeef {
		t.Errorf("Uint32(2) = %#x", got)
	}
}

func TestScalarBytes(t *testing.T) {
	b := scalarBytes(Int32, -1)
	if b != [4]byte{0xff, 0xff, 0xff, 0xff} {
		t.Errorf("scalarBytes(Int32, -1) = %v", b)
	}
	f := bytesToFloat32s(func() []byte { x := scalarBytes(Float32, 1.5); return x[:] }())
	if f[0] != 1.5 {
		t.Errorf("scalarBytes(Float32, 1.5) decodes to %v", f[0])
	}

	uints := []struct {
		v    float64
		want [4]byte
	}{
		{-1, [4]byte{0xff, 0xff, 0xff, 0xff}},
		{-2, [4]byte{0xfe, 0xff, 0xff, 0xff}},
		{7, [4]byte{7, 0, 0, 0}},
		{4294967295, [4]byte{0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range uints {
		if got := scalarBytes(Uint32, tt.v); got != tt.want {
			t.Errorf("scalarBytes(Uint32, %v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
