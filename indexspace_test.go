// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"errors"
	"slices"
	"testing"
)

func mustSpace(t *testing.T, shape Shape, wg []int) *IndexSpace {
	t.Helper()
	s, err := NewIndexSpace(shape, wg)
	if err != nil {
		t.Fatalf("NewIndexSpace(%v, %v) = %v", shape, wg, err)
	}
	return s
}

func TestNewIndexSpace(t *testing.T) {
	tests := []struct {
		name       string
		shape      Shape
		wg         []int
		wantWG     []int
		wantGroups []int
		wantMasked int
	}{
		{"default 1d", Shape{100}, nil, []int{64}, []int{2}, 28},
		{"default 2d", Shape{4, 4}, nil, []int{8, 8}, []int{1, 1}, 48},
		{"default 3d", Shape{2, 16, 16}, nil, []int{1, 8, 8}, []int{2, 2, 2}, 0},
		{"right aligned", Shape{3, 10}, []int{4}, []int{1, 4}, []int{3, 3}, 6},
		{"exact fit", Shape{16, 16}, []int{4, 4}, []int{4, 4}, []int{4, 4}, 0},
		{"larger than extent", Shape{5}, []int{256}, []int{256}, []int{1}, 251},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustSpace(t, tt.shape, tt.wg)
			if !slices.Equal(s.WorkGroup(), tt.wantWG) {
				t.Errorf("WorkGroup() = %v, want %v", s.WorkGroup(), tt.wantWG)
			}
			if !slices.Equal(s.Groups(), tt.wantGroups) {
				t.Errorf("Groups() = %v, want %v", s.Groups(), tt.wantGroups)
			}
			if s.Masked() != tt.wantMasked {
				t.Errorf("Masked() = %d, want %d", s.Masked(), tt.wantMasked)
			}
			if s.Elements()+s.Masked() != s.Invocations() {
				t.Error("Elements + Masked must equal Invocations")
			}
		})
	}
}

func TestNewIndexSpaceErrors(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		wg    []int
		want  error
	}{
		{"empty shape", Shape{}, nil, ErrInvalidShape},
		{"zero extent", Shape{0}, nil, ErrInvalidShape},
		{"wg rank too large", Shape{8}, []int{2, 2}, ErrInvalidLaunchConfig},
		{"zero wg dim", Shape{8, 8}, []int{0, 8}, ErrInvalidLaunchConfig},
		{"negative wg dim", Shape{8}, []int{-4}, ErrInvalidLaunchConfig},
		{"overflowing shape", Shape{MaxElements, MaxElements}, nil, ErrInvalidShape},
		{"huge wg dim", Shape{8}, []int{MaxElements + 1}, ErrInvalidLaunchConfig},
		{"padding overflows", Shape{2, MaxElements / 2}, []int{2, MaxElements/2 + 1}, ErrInvalidLaunchConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewIndexSpace(tt.shape, tt.wg); !errors.Is(err, tt.want) {
				t.Errorf("NewIndexSpace() = %v, want %v", err, tt.want)
			}
		})
	}
}

// Every in-bounds index is visited exactly once across all tiles and no
// out-of-bounds index is visited.
func TestIndexSpaceCoverage(t *testing.T) {
	tests := []struct {
		shape Shape
		wg    []int
	}{
		{Shape{1}, nil},
		{Shape{100}, []int{7}},
		{Shape{4, 4}, nil},
		{Shape{9, 13}, []int{4, 5}},
		{Shape{3, 5, 7}, []int{2, 3, 4}},
		{Shape{2, 3, 4, 5}, []int{3}},
	}
	for _, tt := range tests {
		t.Run(tt.shape.String(), func(t *testing.T) {
			s := mustSpace(t, tt.shape, tt.wg)
			seen := make([]int, tt.shape.NumElements())
			for tile := range s.Tiles() {
				s.ForEach(s.Tile(tile), func(idx Index) {
					if idx.Linear < 0 || idx.Linear >= len(seen) {
						t.Fatalf("index %d out of bounds", idx.Linear)
					}
					want := tt.shape.Unravel(idx.Linear, nil)
					if !slices.Equal(idx.Coords, want) {
						t.Fatalf("coords %v for linear %d, want %v", idx.Coords, idx.Linear, want)
					}
					seen[idx.Linear]++
				})
			}
			for i, n := range seen {
				if n != 1 {
					t.Fatalf("element %d visited %d times", i, n)
				}
			}
		})
	}
}

func TestIndexSpaceTileClipped(t *testing.T) {
	s := mustSpace(t, Shape{10}, []int{4})
	last := s.Tile(s.Tiles() - 1)
	if last.Lo[0] != 8 || last.Hi[0] != 10 || last.Len() != 2 {
		t.Errorf("last tile = %+v, want [8, 10)", last)
	}
}

func TestIndexSpaceGrid2D(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		wg    []int
		want  Grid2D
	}{
		{"vector", Shape{100}, nil, Grid2D{Rows: 1, Cols: 100, GroupX: 64, GroupY: 1, DispatchX: 2, DispatchY: 1}},
		{"matrix", Shape{4, 4}, nil, Grid2D{Rows: 4, Cols: 4, GroupX: 8, GroupY: 8, DispatchX: 1, DispatchY: 1}},
		{"rank 3 collapses rows", Shape{2, 3, 5}, []int{4, 2}, Grid2D{Rows: 6, Cols: 5, GroupX: 2, GroupY: 4, DispatchX: 3, DispatchY: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustSpace(t, tt.shape, tt.wg).Grid2D(); got != tt.want {
				t.Errorf("Grid2D() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDefaultWorkGroup(t *testing.T) {
	if got := DefaultWorkGroup(1); !slices.Equal(got, []int{64}) {
		t.Errorf("DefaultWorkGroup(1) = %v", got)
	}
	if got := DefaultWorkGroup(3); !slices.Equal(got, []int{8, 8}) {
		t.Errorf("DefaultWorkGroup(3) = %v", got)
	}
}

func BenchmarkIndexSpaceForEach(b *testing.B) {
	s, _ := NewIndexSpace(Shape{256, 256}, nil)
	b.ReportAllocs()
	for b.Loop() {
		sum := 0
		for tile := range s.Tiles() {
			s.ForEach(s.Tile(tile), func(idx Index) { sum += idx.Linear })
		}
		_ = sum
	}
}
