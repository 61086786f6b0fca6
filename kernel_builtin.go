// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

// Built-in kernels.
var (
	// Add computes out = a + b.
	Add = MustKernel("add", 2, binaryBody(
		func(a, b float32) float32 { return a + b },
		func(a, b int32) int32 { return a + b },
		func(a, b uint32) uint32 { return a + b },
	), WithWGSL("a[i] + b[i]"))

	// Sub computes out = a - b.
	Sub = MustKernel("sub", 2, binaryBody(
		func(a, b float32) float32 { return a - b },
		func(a, b int32) int32 { return a - b },
		func(a, b uint32) uint32 { return a - b },
	), WithWGSL("a[i] - b[i]"))

	// Mul computes out = a * b.
	Mul = MustKernel("mul", 2, binaryBody(
		func(a, b float32) float32 { return a * b },
		func(a, b int32) int32 { return a * b },
		func(a, b uint32) uint32 { return a * b },
	), WithWGSL("a[i] * b[i]"))

	// Max computes out = a if a > b, else b. A NaN in a yields b.
	Max = MustKernel("max", 2, binaryBody(
		func(a, b float32) float32 { return pick(a > b, a, b) },
		func(a, b int32) int32 { return pick(a > b, a, b) },
		func(a, b uint32) uint32 { return pick(a > b, a, b) },
	), WithWGSL("select(b[i], a[i], a[i] > b[i])"))

	// Neg computes out = -a. Uint32 negation wraps.
	Neg = MustKernel("neg", 1, unaryBody(
		func(a float32) float32 { return -a },
		func(a int32) int32 { return -a },
		func(a uint32) uint32 { return -a },
	), WithWGSL("-a[i]"), WithWGSLFor(Uint32, "0u - a[i]"))

	// Copy computes out = a.
	Copy = MustKernel("copy", 1, func(idx Index, out View, in []View) {
		out.SetUint32(idx.Linear, in[0].Uint32(idx.Linear))
	}, WithWGSL("a[i]"))
)

func pick[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

func binaryBody(f func(a, b float32) float32, s func(a, b int32) int32, u func(a, b uint32) uint32) Body {
	return func(idx Index, out View, in []View) {
		i := idx.Linear
		switch out.dtype {
		case Float32:
			out.SetFloat32(i, f(in[0].Float32(i), in[1].Float32(i)))
		case Int32:
			out.SetInt32(i, s(in[0].Int32(i), in[1].Int32(i)))
		case Uint32:
			out.SetUint32(i, u(in[0].Uint32(i), in[1].Uint32(i)))
		}
	}
}

func unaryBody(f func(a float32) float32, s func(a int32) int32, u func(a uint32) uint32) Body {
	return func(idx Index, out View, in []View) {
		i := idx.Linear
		switch out.dtype {
		case Float32:
			out.SetFloat32(i, f(in[0].Float32(i)))
		case Int32:
			out.SetInt32(i, s(in[0].Int32(i)))
		case Uint32:
			out.SetUint32(i, u(in[0].Uint32(i)))
		}
	}
}
