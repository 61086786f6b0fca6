// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Shape is the extent of a buffer, outermost dimension first.
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// NumElements returns the product of all dimensions.
// An empty shape has zero elements.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have the same dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of s.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

// MaxElements is the largest element count of a valid shape. The byte
// size of a buffer of any DType fits in an int.
const MaxElements = math.MaxInt / 4

// Validate reports ErrInvalidShape for an empty shape, any dimension that
// is not positive, or more than MaxElements elements.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: rank 0", ErrInvalidShape)
	}
	n := 1
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("%w: dim %d is %d", ErrInvalidShape, i, d)
		}
		if n > MaxElements/d {
			return fmt.Errorf("%w: %v exceeds %d elements", ErrInvalidShape, s, MaxElements)
		}
		n *= d
	}
	return nil
}

// Strides returns the row-major element strides of s.
func (s Shape) Strides() []int {
	st := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= s[i]
	}
	return st
}

// Unravel converts a row-major linear index into per-dimension coordinates.
func (s Shape) Unravel(linear int, coords []int) []int {
	if cap(coords) < len(s) {
		coords = make([]int, len(s))
	}
	coords = coords[:len(s)]
	for i := len(s) - 1; i >= 0; i-- {
		coords[i] = linear % s[i]
		linear /= s[i]
	}
	return coords
}

// String formats the shape as (d0, d1, ...).
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
