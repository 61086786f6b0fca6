// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package launch

import "time"

// LaunchEvent reports one finished launch to an observer registered with
// WithObserver. It carries what a profiler needs to place the launch on a
// timeline.
type LaunchEvent struct {
	Kernel    string
	Backend   string
	Tag       Tag
	DType     DType
	Extent    Shape
	WorkGroup []int
	Groups    []int

	// Elements is the number of in-bounds invocations.
	Elements int
	// Masked is the number of padded invocations that did no work.
	Masked int

	Submitted time.Time
	Completed time.Time
	Err       error
}

// Duration returns the time from submission to completion.
func (e LaunchEvent) Duration() time.Duration {
	return e.Completed.Sub(e.Submitted)
}
