// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

// LauncherOption configures a Launcher during creation.
//
// Example:
//
//	l := launch.NewLauncher(
//	    launch.WithHostWorkers(8),
//	    launch.WithObserver(func(e launch.LaunchEvent) {
//	        log.Printf("%s took %v", e.Kernel, e.Duration())
//	    }),
//	)
type LauncherOption func(*launcherOptions)

type launcherOptions struct {
	workers   int
	device    DeviceBackend
	observer  func(LaunchEvent)
	workGroup []int
}

func defaultLauncherOptions() launcherOptions {
	return launcherOptions{
		workers: 0, // GOMAXPROCS
	}
}

// WithHostWorkers sets the number of host pool workers.
// Zero or a negative value selects GOMAXPROCS.
func WithHostWorkers(n int) LauncherOption {
	return func(o *launcherOptions) {
		o.workers = n
	}
}

// WithDevice sets the device backend for new device buffers instead of the
// registered one. The device must already be initialized; the launcher does
// not close it.
func WithDevice(d DeviceBackend) LauncherOption {
	return func(o *launcherOptions) {
		o.device = d
	}
}

// WithObserver installs a hook called once per finished launch, from the
// goroutine that completed it. The hook must not block.
func WithObserver(fn func(LaunchEvent)) LauncherOption {
	return func(o *launcherOptions) {
		o.observer = fn
	}
}

// WithDefaultWorkGroup sets the work group used by Launch. Dims are right
// aligned to the innermost buffer dimensions. Without it Launch uses
// DefaultWorkGroup.
func WithDefaultWorkGroup(dims ...int) LauncherOption {
	return func(o *launcherOptions) {
		o.workGroup = append([]int(nil), dims...)
	}
}
