// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed shaders/elementwise.wgsl
var elementwiseSource string

var elementwiseTemplate = template.Must(template.New("elementwise").Parse(elementwiseSource))

// InputNames are the WGSL identifiers of kernel inputs, in order.
var InputNames = [MaxArity]string{"a", "b", "c", "d", "e", "f", "g"}

type wgslInput struct {
	Name    string
	Binding int
}

type wgslParams struct {
	Type       string
	Inputs     []wgslInput
	OutBinding int
	GroupX     int
	GroupY     int
	Expr       string
}

// WGSL renders the complete compute shader of the kernel for element type
// dt and a groupX by groupY work group. The entry point is "main".
// It returns ErrUnsupportedKernel when the kernel has no device expression
// for dt.
func (k *Kernel) WGSL(dt DType, groupX, groupY int) (string, error) {
	expr, ok := k.WGSLExpr(dt)
	if !ok {
		return "", fmt.Errorf("%w: kernel %q has no WGSL for %s", ErrUnsupportedKernel, k.name, dt)
	}
	if groupX <= 0 || groupY <= 0 {
		return "", fmt.Errorf("%w: work group %dx%d", ErrInvalidLaunchConfig, groupX, groupY)
	}
	p := wgslParams{
		Type:       dt.WGSL(),
		OutBinding: k.arity + 1,
		GroupX:     groupX,
		GroupY:     groupY,
		Expr:       expr,
	}
	for i := range k.arity {
		p.Inputs = append(p.Inputs, wgslInput{Name: InputNames[i], Binding: i + 1})
	}
	var sb strings.Builder
	if err := elementwiseTemplate.Execute(&sb, p); err != nil {
		return "", fmt.Errorf("launch: render WGSL for %q: %w", k.name, err)
	}
	return sb.String(), nil
}
