// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import "fmt"

// Index identifies one element of a launch.
//
// Coords is owned by the launcher and reused between calls; a body must
// copy it if it needs it after returning.
type Index struct {
	Linear int
	Coords []int
}

// Tile is the in-bounds region covered by one work group, as per-dimension
// half-open ranges [Lo, Hi).
type Tile struct {
	Lo []int
	Hi []int
}

// Len returns the number of elements in the tile.
func (t Tile) Len() int {
	n := 1
	for d := range t.Lo {
		n *= t.Hi[d] - t.Lo[d]
	}
	return n
}

// Grid2D is an index space collapsed to the two-dimensional grid used by
// device dispatch. X is the innermost dimension; Y is the product of all
// leading dimensions.
type Grid2D struct {
	Rows, Cols           int
	GroupX, GroupY       int
	DispatchX, DispatchY int
}

// IndexSpace splits a global extent into work groups.
type IndexSpace struct {
	shape  Shape
	wg     []int
	groups []int
}

// DefaultWorkGroup returns the work group used when a launch does not set
// one: {64} for rank 1 and 8x8 on the two innermost dimensions otherwise.
func DefaultWorkGroup(rank int) []int {
	if rank <= 1 {
		return []int{64}
	}
	return []int{8, 8}
}

// NewIndexSpace builds the index space for shape. The work group is right
// aligned to the innermost dimensions and missing leading dimensions are 1.
// A nil work group selects DefaultWorkGroup.
func NewIndexSpace(shape Shape, workGroup []int) (*IndexSpace, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	rank := shape.Rank()
	if len(workGroup) == 0 {
		workGroup = DefaultWorkGroup(rank)
		if len(workGroup) > rank {
			workGroup = workGroup[len(workGroup)-rank:]
		}
	}
	if len(workGroup) > rank {
		return nil, fmt.Errorf("%w: work group rank %d exceeds shape rank %d",
			ErrInvalidLaunchConfig, len(workGroup), rank)
	}

	wg := make([]int, rank)
	off := rank - len(workGroup)
	for i := range wg {
		if i < off {
			wg[i] = 1
			continue
		}
		v := workGroup[i-off]
		if v <= 0 {
			return nil, fmt.Errorf("%w: work group dim %d is %d", ErrInvalidLaunchConfig, i-off, v)
		}
		wg[i] = v
	}

	groups := make([]int, rank)
	padded := 1
	for i := range groups {
		if wg[i] > MaxElements {
			return nil, fmt.Errorf("%w: work group dim %d is %d", ErrInvalidLaunchConfig, i-off, wg[i])
		}
		groups[i] = (shape[i] + wg[i] - 1) / wg[i]
		p := groups[i] * wg[i]
		if padded > MaxElements/p {
			return nil, fmt.Errorf("%w: padded extent of %v with work group %v exceeds %d invocations",
				ErrInvalidLaunchConfig, shape, wg, MaxElements)
		}
		padded *= p
	}
	return &IndexSpace{shape: shape.Clone(), wg: wg, groups: groups}, nil
}

// Shape returns the global extent.
func (s *IndexSpace) Shape() Shape { return s.shape.Clone() }

// WorkGroup returns the normalized work group, one entry per dimension.
func (s *IndexSpace) WorkGroup() []int { return append([]int(nil), s.wg...) }

// Groups returns the number of work groups along each dimension.
func (s *IndexSpace) Groups() []int { return append([]int(nil), s.groups...) }

// GroupSize returns the number of invocations in one work group.
func (s *IndexSpace) GroupSize() int {
	n := 1
	for _, v := range s.wg {
		n *= v
	}
	return n
}

// Tiles returns the total number of work groups.
func (s *IndexSpace) Tiles() int {
	n := 1
	for _, g := range s.groups {
		n *= g
	}
	return n
}

// Elements returns the number of in-bounds elements.
func (s *IndexSpace) Elements() int { return s.shape.NumElements() }

// Invocations returns the padded invocation count, Tiles times GroupSize.
func (s *IndexSpace) Invocations() int { return s.Tiles() * s.GroupSize() }

// Masked returns the number of invocations that fall outside the extent.
func (s *IndexSpace) Masked() int { return s.Invocations() - s.Elements() }

// Tile returns the region of work group t, clipped to the extent.
// Work groups are numbered row-major over Groups.
func (s *IndexSpace) Tile(t int) Tile {
	rank := len(s.shape)
	tile := Tile{Lo: make([]int, rank), Hi: make([]int, rank)}
	for d := rank - 1; d >= 0; d-- {
		g := t % s.groups[d]
		t /= s.groups[d]
		lo := g * s.wg[d]
		tile.Lo[d] = lo
		tile.Hi[d] = min(lo+s.wg[d], s.shape[d])
	}
	return tile
}

// ForEach calls fn for every in-bounds index of tile in row-major order.
// The Index passed to fn shares its Coords slice across calls.
func (s *IndexSpace) ForEach(tile Tile, fn func(Index)) {
	rank := len(s.shape)
	for d := range rank {
		if tile.Lo[d] >= tile.Hi[d] {
			return
		}
	}
	strides := s.shape.Strides()
	coords := append([]int(nil), tile.Lo...)
	last := rank - 1
	for {
		base := 0
		for d := 0; d < last; d++ {
			base += coords[d] * strides[d]
		}
		for c := tile.Lo[last]; c < tile.Hi[last]; c++ {
			coords[last] = c
			fn(Index{Linear: base + c, Coords: coords})
		}
		// Advance the leading dimensions like an odometer.
		d := last - 1
		for ; d >= 0; d-- {
			coords[d]++
			if coords[d] < tile.Hi[d] {
				break
			}
			coords[d] = tile.Lo[d]
		}
		if d < 0 {
			return
		}
	}
}

// Grid2D collapses the space onto the device grid.
func (s *IndexSpace) Grid2D() Grid2D {
	rank := len(s.shape)
	g := Grid2D{Rows: 1, Cols: s.shape[rank-1], GroupX: s.wg[rank-1], GroupY: 1}
	for d := 0; d < rank-1; d++ {
		g.Rows *= s.shape[d]
	}
	if rank >= 2 {
		g.GroupY = s.wg[rank-2]
	}
	g.DispatchX = (g.Cols + g.GroupX - 1) / g.GroupX
	g.DispatchY = (g.Rows + g.GroupY - 1) / g.GroupY
	return g
}

// String describes the extent and the work group.
func (s *IndexSpace) String() string {
	return fmt.Sprintf("extent=%v wg=%v groups=%v", s.shape, Shape(s.wg), Shape(s.groups))
}
