// Package mono provides monotonic-clock helpers used for grace-period and
// idle-timer arithmetic: a monotonic nanosecond clock independent of
// wall-clock adjustments (NTP slew, leap seconds, manual clock changes).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

// NanoTime returns a monotonic nanosecond reading suitable for storing in an
// atomic cell and later diffing with Since. Never use it as a wall-clock
// timestamp.
func NanoTime() int64 { return int64(time.Since(base)) }

// base anchors NanoTime; time.Since reads its monotonic clock component.
var base = time.Now()

// Since returns the monotonic duration elapsed since a NanoTime reading.
func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
