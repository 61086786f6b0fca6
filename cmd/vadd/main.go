// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command vadd adds two filled matrices on the host, the device or both,
// checks c == a + b and reports launch timings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gogpu/launch"
	gpuimpl "github.com/gogpu/launch/internal/gpu"
)

const (
	fillA = 1
	fillB = 2
)

type result struct {
	tag    launch.Tag
	values []float32
	first  time.Duration
	best   time.Duration
	total  time.Duration
}

func main() {
	var (
		rows    = flag.Int("rows", 1024, "number of rows")
		cols    = flag.Int("cols", 1024, "number of columns")
		backend = flag.String("backend", "both", "where to run: host, device or both")
		wg      = flag.String("wg", "", "work group, e.g. 16,16 (default: 8,8)")
		iters   = flag.Int("iters", 10, "launches per backend")
		halName = flag.String("hal", gpuimpl.BackendAuto, "HAL backend: auto, vulkan, metal, dx12, gl or software")
		verbose = flag.Bool("v", false, "debug logging to stderr")
	)
	flag.Parse()

	if *verbose {
		launch.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	if *iters < 1 {
		log.Fatalf("-iters must be at least 1, got %d", *iters)
	}
	workGroup, err := parseWorkGroup(*wg)
	if err != nil {
		log.Fatalf("Invalid -wg: %v", err)
	}

	var tags []launch.Tag
	switch *backend {
	case "host":
		tags = []launch.Tag{launch.Host}
	case "device":
		tags = []launch.Tag{launch.Device}
	case "both":
		tags = []launch.Tag{launch.Host, launch.Device}
	default:
		log.Fatalf("Unknown -backend %q", *backend)
	}

	var opts []launch.LauncherOption
	if *backend != "host" {
		dev, err := openDevice(*halName)
		if err != nil {
			log.Fatalf("Open device: %v", err)
		}
		defer dev.Close()
		info := dev.Info()
		log.Printf("Device: %s (%s, %s)", info.Name, info.Type, dev.Name())
		opts = append(opts, launch.WithDevice(dev))
	}
	l := launch.NewLauncher(opts...)
	defer l.Close()

	hi := l.HostInfo()
	log.Printf("Host: %d workers, %s", hi.Workers, hi.CPU)

	ctx := context.Background()
	shape := launch.Shape{*rows, *cols}
	var results []result
	for _, tag := range tags {
		r, err := run(ctx, l, tag, shape, workGroup, *iters)
		if err != nil {
			log.Fatalf("%s: %v", tag, err)
		}
		if bad := firstMismatch(r.values, fillA+fillB); bad >= 0 {
			log.Printf("%s: c[%d] = %v, want %v", tag, bad, r.values[bad], float32(fillA+fillB))
			os.Exit(1)
		}
		log.Printf("%-6s %v ok: first %v, best %v, mean %v",
			tag, shape, r.first, r.best, r.total/time.Duration(*iters))
		results = append(results, r)
	}

	if len(results) == 2 {
		if i := firstDifference(results[0].values, results[1].values); i >= 0 {
			log.Printf("host and device differ at %d: %v != %v", i, results[0].values[i], results[1].values[i])
			os.Exit(1)
		}
		log.Printf("host and device results are identical")
	}
}

// openDevice opens a device on the named HAL backend. Only device runs pay
// for adapter probing.
func openDevice(halName string) (launch.DeviceBackend, error) {
	d := gpuimpl.NewDevice(gpuimpl.Config{Backend: halName})
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

func run(ctx context.Context, l *launch.Launcher, tag launch.Tag, shape launch.Shape, wg []int, iters int) (result, error) {
	r := result{tag: tag}
	a, err := l.Full(tag, shape, launch.Float32, fillA)
	if err != nil {
		return r, err
	}
	defer a.Free() //nolint:errcheck // launches waited
	b, err := l.Full(tag, shape, launch.Float32, fillB)
	if err != nil {
		return r, err
	}
	defer b.Free() //nolint:errcheck // launches waited
	c, err := l.NewBuffer(tag, shape, launch.Float32)
	if err != nil {
		return r, err
	}
	defer c.Free() //nolint:errcheck // launches waited

	cfg := launch.LaunchConfig{WorkGroup: wg}
	for i := range iters {
		h, err := l.LaunchWith(ctx, cfg, launch.Add, c, a, b)
		if err != nil {
			return r, fmt.Errorf("launch %d: %w", i, err)
		}
		if err := h.Wait(ctx); err != nil {
			return r, fmt.Errorf("wait %d: %w", i, err)
		}
		d := h.Elapsed()
		if i == 0 {
			r.first, r.best = d, d
		}
		r.best = min(r.best, d)
		r.total += d
	}

	r.values, err = c.Float32s()
	return r, err
}

func parseWorkGroup(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	wg := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, fmt.Errorf("dim %d is %d", i, v)
		}
		wg[i] = v
	}
	return wg, nil
}

func firstMismatch(values []float32, want float32) int {
	for i, v := range values {
		if v != want {
			return i
		}
	}
	return -1
}

func firstDifference(a, b []float32) int {
	if len(a) != len(b) {
		return min(len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}
