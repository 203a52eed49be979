// Package gc implements the per-CPU garbage collector (GC): a bounded batch
// of in-flight frame references for one receive cycle.
//
// A bounded, reused-across-cycles work array of buffs, referred to by
// small integer indices rather than by direct pointers, avoiding a
// self-referential pointer graph and keeping the batch serializable.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package gc

import (
	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/fanout"
	"github.com/NVIDIA/rxfabric/pool"
)

// FwdTarget is one entry of the device-forwarding list a program populates
// while being evaluated.
type FwdTarget struct {
	Ifindex int32
	BuffIdx int // index into Batch.buffs
}

// Batch is one CPU's GC: up to cmn.BatchCap buffs, plus the forwarding
// targets a program appended while evaluating them.
//
// Not safe for concurrent use - by construction it is touched only by its
// owning CPU.
type Batch struct {
	buffs [cmn.BatchCap]fanout.Buff
	bufs [cmn.BatchCap]*pool.Buf // backing pool.Buf per buff, for Free
	n int
	fwdTargets []FwdTarget
	lastEnqueue int64 // mono.NanoTime() of the last make_buff, for the 1ms accumulate check
}

// NewBatch preallocates the fwd_targets slice; the group limits cap
// how many device-forward entries a single cycle can plausibly produce
// (at most BatchCap frames each issuing at most a handful of forwards).
func NewBatch() *Batch {
	return &Batch{fwdTargets: make([]FwdTarget, 0, cmn.BatchCap*2)}
}

// MakeBuff implements "make_buff(skb) -> buff | none": inserts,
// initializes the control block, returns a handle (index); -1 ("none") at
// capacity.
func (b *Batch) MakeBuff(src *pool.Buf, ifindex, queue int32, vlanTCI uint16, tstamp int64) int {
	if b.n >= cmn.BatchCap {
		return -1
	}
	idx := b.n
	buf := &b.buffs[idx]
	buf.Reset()
	buf.Payload = src.Data
	buf.Ifindex = ifindex
	buf.Queue = queue
	buf.VlanTCI = vlanTCI
	buf.Tstamp = tstamp
	b.bufs[idx] = src
	b.n++
	b.lastEnqueue = tstamp
	return idx
}

// Buff returns the buff at idx for RX to read/mutate during classification.
func (b *Batch) Buff(idx int) *fanout.Buff { return &b.buffs[idx] }

// Size implements "size()".
func (b *Batch) Size() int { return b.n }

// LastEnqueue is the timestamp of the most recent MakeBuff call, used by the
// RX accumulate-vs-flush decision.
func (b *Batch) LastEnqueue() int64 { return b.lastEnqueue }

// AddFwdTarget records a device-forward a program issued against buffIdx.
func (b *Batch) AddFwdTarget(ifindex int32, buffIdx int) {
	b.fwdTargets = append(b.fwdTargets, FwdTarget{Ifindex: ifindex, BuffIdx: buffIdx})
}

// GetFwdTargets implements "get_fwd_targets(&out)".
func (b *Batch) GetFwdTargets() []FwdTarget { return b.fwdTargets }

// Free releases every backing pool.Buf back to its CPU's RX pool. Reset
// does NOT free buffers; callers invoke Free explicitly after dispatch has
// finished with the batch.
func (b *Batch) Free(cpu *pool.CPU) {
	for i := 0; i < b.n; i++ {
		if b.bufs[i] != nil {
			cpu.Put(pool.FlavorRX, b.bufs[i])
			b.bufs[i] = nil
		}
	}
}

// Reset implements "reset()": empties the array and forwarding
// targets; does not free buffers.
func (b *Batch) Reset() {
	b.n = 0
	b.fwdTargets = b.fwdTargets[:0]
}
