// Package stats holds the process-wide, per-CPU counters RX increments
// directly plus a Prometheus exporter adapter over them and over
// group.Stats.
//
// Per-CPU atomic counters,
// summed across shards on read, and exposed to Prometheus as a collector
// that is read on each scrape.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import "github.com/NVIDIA/rxfabric/cmn/atomic"

// Shard is one CPU's slice of the global counters.
type Shard struct {
	Recv atomic.Int64
	Kern atomic.Int64
	Quit atomic.Int64
	Frwd atomic.Int64
	Disc atomic.Int64
	Lost atomic.Int64
}

// Global is the per-CPU shard array, summed on read.
type Global struct {
	shards []Shard
}

func NewGlobal(numCPU int) *Global {
	return &Global{shards: make([]Shard, numCPU)}
}

func (g *Global) Shard(cpu int) *Shard { return &g.shards[cpu] }

// Totals is the summed snapshot for control-plane/export reads.
type Totals struct {
	Recv int64
	Kern int64
	Quit int64
	Frwd int64
	Disc int64
	Lost int64
}

func (g *Global) Sum() Totals {
	var t Totals
	for i := range g.shards {
		t.Recv += g.shards[i].Recv.Load()
		t.Kern += g.shards[i].Kern.Load()
		t.Quit += g.shards[i].Quit.Load()
		t.Frwd += g.shards[i].Frwd.Load()
		t.Disc += g.shards[i].Disc.Load()
		t.Lost += g.shards[i].Lost.Load()
	}
	return t
}
