// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	"fmt"
	"slices"
)

// MaxArity is the largest number of kernel inputs. Together with the output
// it fills the eight storage bindings every device must support.
const MaxArity = 7

// Body is the host implementation of a kernel. It computes the single
// output element at idx.Linear from the inputs at the same index.
// Body is called concurrently for distinct indices and must not retain
// the views or idx.Coords.
type Body func(idx Index, out View, in []View)

// Kernel is one elementwise operation with a host body and a device
// expression. Kernels are immutable and safe to share.
type Kernel struct {
	name   string
	arity  int
	body   Body
	wgsl   map[DType]string
	dtypes []DType
}

// KernelOption configures a Kernel.
type KernelOption func(*Kernel)

// WithWGSL sets the device expression for every element type. The
// expression is evaluated at index i and refers to the inputs as a, b, c,
// and so on, e.g. "a[i] * b[i] + 1.0".
func WithWGSL(expr string) KernelOption {
	return func(k *Kernel) {
		for _, dt := range []DType{Float32, Int32, Uint32} {
			k.wgsl[dt] = expr
		}
	}
}

// WithWGSLFor sets the device expression for one element type.
func WithWGSLFor(dt DType, expr string) KernelOption {
	return func(k *Kernel) {
		k.wgsl[dt] = expr
	}
}

// WithDTypes restricts the element types the kernel accepts.
// By default a kernel accepts all of them.
func WithDTypes(dts ...DType) KernelOption {
	return func(k *Kernel) {
		k.dtypes = slices.Clone(dts)
	}
}

// NewKernel creates a kernel with arity inputs. The body may be nil for a
// device-only kernel, in which case a device expression is required.
func NewKernel(name string, arity int, body Body, opts ...KernelOption) (*Kernel, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: kernel name is empty", ErrInvalidArgument)
	}
	if arity < 1 || arity > MaxArity {
		return nil, fmt.Errorf("%w: kernel %q arity %d outside [1, %d]", ErrInvalidArgument, name, arity, MaxArity)
	}
	k := &Kernel{
		name:   name,
		arity:  arity,
		body:   body,
		wgsl:   make(map[DType]string),
		dtypes: []DType{Float32, Int32, Uint32},
	}
	for _, opt := range opts {
		opt(k)
	}
	if len(k.dtypes) == 0 {
		return nil, fmt.Errorf("%w: kernel %q accepts no element type", ErrInvalidArgument, name)
	}
	for _, dt := range k.dtypes {
		if !dt.Valid() {
			return nil, fmt.Errorf("%w: kernel %q: unknown dtype %d", ErrInvalidArgument, name, dt)
		}
	}
	if body == nil && len(k.wgsl) == 0 {
		return nil, fmt.Errorf("%w: kernel %q has neither a body nor WGSL", ErrInvalidArgument, name)
	}
	return k, nil
}

// MustKernel is like NewKernel but panics on error.
func MustKernel(name string, arity int, body Body, opts ...KernelOption) *Kernel {
	k, err := NewKernel(name, arity, body, opts...)
	if err != nil {
		panic(err)
	}
	return k
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// Arity returns the number of inputs.
func (k *Kernel) Arity() int { return k.arity }

// Body returns the host body, or nil for a device-only kernel.
func (k *Kernel) Body() Body { return k.body }

// DTypes returns the accepted element types.
func (k *Kernel) DTypes() []DType { return slices.Clone(k.dtypes) }

// Supports reports whether the kernel accepts dt.
func (k *Kernel) Supports(dt DType) bool { return slices.Contains(k.dtypes, dt) }

// WGSLExpr returns the device expression for dt.
func (k *Kernel) WGSLExpr(dt DType) (string, bool) {
	e, ok := k.wgsl[dt]
	return e, ok && e != ""
}

// String returns the kernel name and arity.
func (k *Kernel) String() string { return fmt.Sprintf("%s/%d", k.name, k.arity) }
