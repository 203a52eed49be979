// Package nlog is rxfabric's leveled logger: module-scoped verbosity gates
// plus a plain package-level writer and rate-limited helpers for the
// hot-path "counted, never propagated" anomalies (pool miss, GC full,
// queue full) that must never flood stderr under load.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/NVIDIA/rxfabric/cmn/atomic"
)

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

func Infoln(args ...any) { std.Println(args...) }
func Infof(format string, a ...any) { std.Printf(format, a...) }
func Errorln(args ...any) { std.Println(append([]any{"ERROR:"}, args...)...) }
func Errorf(format string, a ...any) {
	std.Printf("ERROR: "+format, a...)
}
func Warningln(args ...any) { std.Println(append([]any{"WARNING:"}, args...)...) }

// RateLimited logs at most once per interval per distinct key; used for
// hot-path resource-exhaustion counters (pool miss, GC full, queue full)
// that must never flood stderr under a live 1 Mpps workload.
type RateLimited struct {
	mtx sync.Mutex
	interval time.Duration
	last map[string]time.Time
}

func NewRateLimited(interval time.Duration) *RateLimited {
	return &RateLimited{interval: interval, last: make(map[string]time.Time)}
}

func (r *RateLimited) Warningf(key, format string, a ...any) {
	now := time.Now()
	r.mtx.Lock()
	prev, ok := r.last[key]
	due := !ok || now.Sub(prev) >= r.interval
	if due {
		r.last[key] = now
	}
	r.mtx.Unlock()
	if due {
		Warningln(fmt.Sprintf(format, a...))
	}
}

// Counter implements a "count 10..20 before logging" pattern, used to
// mirror the bounded-burst logging this fabric's chanFull handling needs.
type Counter struct {
	n atomic.Int64
}

// Hit returns true on the calls where the cumulative count falls within
// [lo,hi], so a caller logs only a short burst instead of every occurrence.
func (c *Counter) Hit(lo, hi int64) bool {
	n := c.n.Inc()
	return n >= lo && n <= hi
}
