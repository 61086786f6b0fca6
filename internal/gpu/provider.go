// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// halProvider is implemented by components that own a wgpu/hal device,
// such as a gogpu window.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// SetDeviceProvider switches the device to a HAL device owned by provider.
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. If it is also a gpucontext.DeviceProvider its
// adapter info is reported by Info.
//
// The switch is only allowed while no buffers are allocated, since they
// belong to the previous device. The shared device is not destroyed by Close.
func (d *Device) SetDeviceProvider(provider any) error {
	hp, ok := provider.(halProvider)
	if !ok {
		return errors.New("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return errors.New("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return errors.New("gpu: provider HalQueue is not hal.Queue")
	}
	if n := d.live.Load(); n > 0 {
		return fmt.Errorf("gpu: cannot switch device with %d live buffers", n)
	}

	d.mu.Lock()
	d.destroyPipelinesLocked()
	if !d.external && d.device != nil {
		d.device.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.device = device
	d.queue = queue
	d.external = true
	d.limits = gputypes.DefaultLimits()
	d.info = gputypes.AdapterInfo{Name: "shared device", DeviceType: gputypes.DeviceTypeOther}
	if dp, ok := provider.(gpucontext.DeviceProvider); ok {
		info := dp.AdapterInfo()
		d.info = gputypes.AdapterInfo{Name: info.Name, DeviceType: deviceType(info.Type)}
	}
	name := d.info.Name
	d.mu.Unlock()

	d.lost.Store(false)
	d.start()
	slogger().Info("gpu: switched to shared device", "adapter", name)
	return nil
}

func deviceType(t gpucontext.AdapterType) gputypes.DeviceType {
	switch t {
	case gpucontext.AdapterTypeDiscrete:
		return gputypes.DeviceTypeDiscreteGPU
	case gpucontext.AdapterTypeIntegrated:
		return gputypes.DeviceTypeIntegratedGPU
	case gpucontext.AdapterTypeSoftware:
		return gputypes.DeviceTypeCPU
	default:
		return gputypes.DeviceTypeOther
	}
}
