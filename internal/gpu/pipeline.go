// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/launch"
	"github.com/gogpu/wgpu/hal"
)

type pipelineKey struct {
	kernel *launch.Kernel
	dtype  launch.DType
	groupX int
	groupY int
}

// pipeline is one compiled kernel specialization.
type pipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	compute    hal.ComputePipeline
	inputs     int
}

// Check validates the work group against the device limits and builds the
// pipeline, so shader errors surface from Launch rather than from Wait.
func (d *Device) Check(k *launch.Kernel, dt launch.DType, space *launch.IndexSpace) error {
	if d.lost.Load() {
		return fmt.Errorf("%w: device lost", launch.ErrDeviceFault)
	}
	if _, ok := k.WGSLExpr(dt); !ok {
		return fmt.Errorf("%w: kernel %q has no WGSL for %s", launch.ErrUnsupportedKernel, k.Name(), dt)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return launch.ErrNoDevice
	}
	if err := checkGrid(space, d.limits); err != nil {
		return err
	}
	g := space.Grid2D()
	if _, err := d.pipelineLocked(k, dt, g.GroupX, g.GroupY); err != nil {
		return fmt.Errorf("%w: %w", launch.ErrUnsupportedKernel, err)
	}
	return nil
}

// checkGrid enforces the per-axis and total work group limits and the
// dispatch count limit. Only the two innermost dimensions map to device
// axes, so every leading work group dimension must be 1.
func checkGrid(space *launch.IndexSpace, lim gputypes.Limits) error {
	wg := space.WorkGroup()
	for i := 0; i < len(wg)-2; i++ {
		if wg[i] != 1 {
			return fmt.Errorf("%w: device work group dim %d is %d, only the two innermost dims may exceed 1",
				launch.ErrInvalidLaunchConfig, i, wg[i])
		}
	}
	g := space.Grid2D()
	switch {
	case g.GroupX > int(lim.MaxComputeWorkgroupSizeX):
		return fmt.Errorf("%w: work group x=%d exceeds %d", launch.ErrInvalidLaunchConfig, g.GroupX, lim.MaxComputeWorkgroupSizeX)
	case g.GroupY > int(lim.MaxComputeWorkgroupSizeY):
		return fmt.Errorf("%w: work group y=%d exceeds %d", launch.ErrInvalidLaunchConfig, g.GroupY, lim.MaxComputeWorkgroupSizeY)
	case g.GroupX*g.GroupY > int(lim.MaxComputeInvocationsPerWorkgroup):
		return fmt.Errorf("%w: work group %dx%d exceeds %d invocations",
			launch.ErrInvalidLaunchConfig, g.GroupX, g.GroupY, lim.MaxComputeInvocationsPerWorkgroup)
	case g.DispatchX > int(lim.MaxComputeWorkgroupsPerDimension), g.DispatchY > int(lim.MaxComputeWorkgroupsPerDimension):
		return fmt.Errorf("%w: dispatch %dx%d exceeds %d groups per dimension",
			launch.ErrInvalidLaunchConfig, g.DispatchX, g.DispatchY, lim.MaxComputeWorkgroupsPerDimension)
	}
	return nil
}

// pipelineLocked returns the cached pipeline for the key, building it on
// first use. Requires d.mu.
func (d *Device) pipelineLocked(k *launch.Kernel, dt launch.DType, gx, gy int) (*pipeline, error) {
	key := pipelineKey{kernel: k, dtype: dt, groupX: gx, groupY: gy}
	if p, ok := d.pipelines[key]; ok {
		return p, nil
	}

	src, err := k.WGSL(dt, gx, gy)
	if err != nil {
		return nil, err
	}
	spirv, err := compileWGSL(src)
	if err != nil {
		return nil, fmt.Errorf("compile %s/%s: %w", k.Name(), dt, err)
	}
	p, err := d.createPipelineLocked(k.Name(), k.Arity(), d.shaderSourceLocked(src, spirv))
	if err != nil {
		return nil, err
	}
	d.pipelines[key] = p
	slogger().Debug("gpu: pipeline created", "kernel", k.Name(), "dtype", dt, "wg", fmt.Sprintf("%dx%d", gx, gy), "spirv_words", len(spirv))
	return p, nil
}

func (d *Device) createPipelineLocked(name string, inputs int, src hal.ShaderSource) (*pipeline, error) {
	p := &pipeline{inputs: inputs}

	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name,
		Source: src,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s shader module: %w", name, err)
	}
	p.shader = shader

	entries := make([]gputypes.BindGroupLayoutEntry, 0, inputs+2)
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding: 0, Visibility: gputypes.ShaderStageCompute,
		Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})
	for i := range inputs {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding: uint32(i + 1), Visibility: gputypes.ShaderStageCompute, //nolint:gosec // arity <= 7
			Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding: uint32(inputs + 1), Visibility: gputypes.ShaderStageCompute, //nolint:gosec // arity <= 7
		Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
	})

	p.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   name + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		d.destroyPipeline(p)
		return nil, fmt.Errorf("create %s bind group layout: %w", name, err)
	}

	p.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: name + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		d.destroyPipeline(p)
		return nil, fmt.Errorf("create %s pipeline layout: %w", name, err)
	}

	p.compute, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: name + "_pipeline", Layout: p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: "main"},
	})
	if err != nil {
		d.destroyPipeline(p)
		return nil, fmt.Errorf("create %s compute pipeline: %w", name, err)
	}
	return p, nil
}

func (d *Device) destroyPipeline(p *pipeline) {
	if p.compute != nil {
		d.device.DestroyComputePipeline(p.compute)
	}
	if p.pipeLayout != nil {
		d.device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		d.device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		d.device.DestroyShaderModule(p.shader)
	}
}

func (d *Device) destroyPipelinesLocked() {
	if d.device == nil {
		return
	}
	for key, p := range d.pipelines {
		d.destroyPipeline(p)
		delete(d.pipelines, key)
	}
}

// PipelineCount returns the number of cached pipelines (for testing).
func (d *Device) PipelineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pipelines)
}
