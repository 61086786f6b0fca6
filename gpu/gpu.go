// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpu registers the wgpu device backend for device buffers.
//
// Import this package to make Device-tagged buffers available through the
// package-level launch functions and every launcher created without
// launch.WithDevice:
//
//	import _ "github.com/gogpu/launch/gpu" // enable the device backend
//
// The registered device probes Vulkan, Metal, DX12 and GL in that order and
// falls back to the pure-Go software backend, so registration succeeds on
// machines without a GPU. A backend that fails or panics while opening is
// skipped. If it still fails, a warning is logged and device
// buffers report launch.ErrNoDevice.
//
// Use Open to create an additional device with explicit options.
package gpu

import (
	"time"

	"github.com/gogpu/launch"
	gpuimpl "github.com/gogpu/launch/internal/gpu"
)

func init() {
	if err := launch.RegisterDevice(New()); err != nil {
		launch.Logger().Warn("device backend not available", "err", err)
	}
}

// HAL backend names for WithHALBackend.
const (
	Auto     = gpuimpl.BackendAuto
	Vulkan   = gpuimpl.BackendVulkan
	Metal    = gpuimpl.BackendMetal
	DX12     = gpuimpl.BackendDX12
	GL       = gpuimpl.BackendGL
	Software = gpuimpl.BackendSoftware
)

// Option configures a device created by New or Open.
type Option func(*gpuimpl.Config)

// WithHALBackend selects the HAL backend by name: Auto, Vulkan, Metal,
// DX12, GL or Software.
func WithHALBackend(name string) Option {
	return func(c *gpuimpl.Config) {
		c.Backend = name
	}
}

// WithSubmitTimeout bounds the run time of one launch. A launch that does
// not finish in time fails with launch.ErrDeviceFault and the device is
// considered lost.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *gpuimpl.Config) {
		c.SubmitTimeout = d
	}
}

// WithPollInterval sets the sleep between queue completion polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *gpuimpl.Config) {
		c.PollInterval = d
	}
}

// WithQueueDepth sets how many launches may wait for the device queue
// before Launch blocks.
func WithQueueDepth(n int) Option {
	return func(c *gpuimpl.Config) {
		c.QueueDepth = n
	}
}

// New returns an unopened device backend. Pass it to launch.RegisterDevice,
// or call Init and use it with launch.WithDevice.
func New(opts ...Option) launch.DeviceBackend {
	var cfg gpuimpl.Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return gpuimpl.NewDevice(cfg)
}

// Open returns an initialized device backend.
func Open(opts ...Option) (launch.DeviceBackend, error) {
	d := New(opts...)
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

// SetDeviceProvider makes the registered device share a GPU device owned by
// provider (e.g., a gogpu window) instead of its own. The provider must
// expose HalDevice() and HalQueue(). Call it before allocating device
// buffers.
func SetDeviceProvider(provider any) error {
	return launch.SetDeviceProvider(provider)
}
