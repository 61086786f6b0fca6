// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/launch"
	"github.com/gogpu/wgpu/hal"

	// Register every HAL backend available on this platform.
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

// HAL backend names accepted by Config.Backend.
const (
	BackendAuto     = "auto"
	BackendVulkan   = "vulkan"
	BackendMetal    = "metal"
	BackendDX12     = "dx12"
	BackendGL       = "gl"
	BackendSoftware = "software"
)

var halBackends = map[string]gputypes.Backend{
	BackendVulkan:   gputypes.BackendVulkan,
	BackendMetal:    gputypes.BackendMetal,
	BackendDX12:     gputypes.BackendDX12,
	BackendGL:       gputypes.BackendGL,
	BackendSoftware: gputypes.BackendEmpty,
}

// autoOrder is the probe order for BackendAuto.
var autoOrder = []string{BackendVulkan, BackendMetal, BackendDX12, BackendGL, BackendSoftware}

// Config configures a Device.
type Config struct {
	// Backend selects the HAL backend by name. Empty means BackendAuto.
	Backend string

	// SubmitTimeout bounds how long one launch may run before the device
	// is declared lost. Zero means 10s.
	SubmitTimeout time.Duration

	// PollInterval is the sleep between completion polls. Zero means 50µs.
	PollInterval time.Duration

	// QueueDepth is the number of launches that can wait for the queue
	// goroutine before Submit blocks. Zero means 64.
	QueueDepth int
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendAuto
	}
	c.Backend = strings.ToLower(c.Backend)
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Microsecond
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 64
	}
	return c
}

// Device is a launch.DeviceBackend on a wgpu/hal device.
//
// HAL calls are serialized by mu. Launches run in submission order on the
// queue goroutine.
type Device struct {
	cfg Config

	mu        sync.Mutex
	instance  hal.Instance
	device    hal.Device
	queue     hal.Queue
	backend   gputypes.Backend
	info      gputypes.AdapterInfo
	limits    gputypes.Limits
	external  bool
	pipelines map[pipelineKey]*pipeline
	live      atomic.Int64 // allocated storages

	subMu   sync.RWMutex
	running bool
	jobs    chan *launch.Dispatch
	quit    chan struct{}
	wg      sync.WaitGroup

	lost atomic.Bool
}

var _ launch.DeviceBackend = (*Device)(nil)

// NewDevice returns an unopened device. Call Init before use.
func NewDevice(cfg Config) *Device {
	return &Device{
		cfg:       cfg.withDefaults(),
		pipelines: make(map[pipelineKey]*pipeline),
	}
}

// Name returns "wgpu/<backend>".
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.device == nil:
		return "wgpu/" + d.cfg.Backend
	case d.external:
		return "wgpu/shared"
	}
	return "wgpu/" + backendName(d.backend)
}

func backendName(b gputypes.Backend) string {
	for name, v := range halBackends {
		if v == b {
			return name
		}
	}
	return "unknown"
}

// SetLogger sets the package logger. It is called by launch.SetLogger.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Init opens the configured HAL backend and starts the queue goroutine.
// Init on an open device is a no-op.
func (d *Device) Init() error {
	if err := d.open(); err != nil {
		return err
	}
	d.start()
	return nil
}

func (d *Device) open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		return nil
	}

	names := []string{d.cfg.Backend}
	if d.cfg.Backend == BackendAuto {
		names = autoOrder
	} else if _, ok := halBackends[d.cfg.Backend]; !ok {
		return fmt.Errorf("%w: unknown HAL backend %q", launch.ErrNoDevice, d.cfg.Backend)
	}

	var errs []error
	for _, name := range names {
		err := d.openLocked(name)
		if err == nil {
			if name == BackendSoftware && d.cfg.Backend == BackendAuto {
				slogger().Warn("gpu: no hardware adapter, using software backend", "tried", errors.Join(errs...))
			}
			return nil
		}
		slogger().Debug("gpu: backend unavailable", "backend", name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return fmt.Errorf("%w: %w", launch.ErrNoDevice, errors.Join(errs...))
}

// openLocked opens one HAL backend. A panic inside the backend, such as GL
// without a current context, is returned as an error.
func (d *Device) openLocked(name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	backend, ok := hal.GetBackend(halBackends[name])
	if !ok {
		return errors.New("backend not registered")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return errors.New("no adapters found")
	}
	selected := selectAdapter(adapters)
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open device: %w", err)
	}

	d.instance = instance
	d.device = openDev.Device
	d.queue = openDev.Queue
	d.backend = halBackends[name]
	d.info = selected.Info
	d.limits = gputypes.DefaultLimits()
	d.external = false
	slogger().Info("gpu: adapter selected",
		"backend", name,
		"adapter", selected.Info.Name,
		"type", adapterType(selected.Info.DeviceType, name == BackendSoftware))
	return nil
}

// selectAdapter prefers discrete, then integrated, then the first adapter.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// Info returns the selected adapter.
func (d *Device) Info() gpucontext.AdapterInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpucontext.AdapterInfo{
		Name: d.info.Name,
		Type: adapterType(d.info.DeviceType, !d.external && d.backend == gputypes.BackendEmpty),
	}
}

func adapterType(t gputypes.DeviceType, software bool) gpucontext.AdapterType {
	switch {
	case t == gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case t == gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case t == gputypes.DeviceTypeCPU, software:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// Lost reports whether the device has failed and rejects all work.
func (d *Device) Lost() bool { return d.lost.Load() }

// markLost records a fatal failure.
func (d *Device) markLost(err error) {
	if d.lost.CompareAndSwap(false, true) {
		slogger().Warn("gpu: device lost", "err", err)
	}
}

// Alloc returns zeroed device storage of size bytes.
func (d *Device) Alloc(size int) (launch.DeviceStorage, error) {
	if d.lost.Load() {
		return nil, fmt.Errorf("%w: device lost", launch.ErrDeviceFault)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: alloc size %d", launch.ErrInvalidArgument, size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return nil, launch.ErrNoDevice
	}
	if uint64(size) > d.limits.MaxStorageBufferBindingSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds storage binding limit %d",
			launch.ErrInvalidArgument, size, d.limits.MaxStorageBufferBindingSize)
	}
	return d.newStorageLocked(uint64(size))
}

// Close drains queued launches, stops the queue goroutine and releases the
// device. A shared device from SetDeviceProvider is left open.
func (d *Device) Close() {
	d.stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyPipelinesLocked()
	if !d.external {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
	d.external = false
}
