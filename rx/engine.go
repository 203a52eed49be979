// Package rx implements the receive engine (RX): the hot path that
// takes a burst of frames, routes them through the group-oriented demux
// matrix, evaluates each group's filter and program, and fans results out
// via endpoint dispatch.
//
// A bounded local batch, no cross-goroutine locking inside one worker's
// iteration, counters touched only by the owning worker, and
// per-CPU discipline: everything in Engine.cpus[n] is touched
// only by the caller operating as CPU n; the caller supplies that identity,
// since Go has no softirq/CPU-pinning primitive to enforce it directly.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package rx

import (
	"time"

	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/cmn/cos"
	"github.com/NVIDIA/rxfabric/cmn/mono"
	"github.com/NVIDIA/rxfabric/cmn/nlog"
	"github.com/NVIDIA/rxfabric/devmap"
	"github.com/NVIDIA/rxfabric/dispatch"
	"github.com/NVIDIA/rxfabric/fanout"
	"github.com/NVIDIA/rxfabric/gc"
	"github.com/NVIDIA/rxfabric/group"
	"github.com/NVIDIA/rxfabric/pool"
	"github.com/NVIDIA/rxfabric/stats"
)

// perCPU is everything one CPU's Receive call touches exclusively.
type perCPU struct {
	batch *gc.Batch
	steer *steerCache
	monad fanout.Monad
}

// Engine is the process-wide RX fabric: one instance, numCPU independent
// per-CPU slices, shared references to the group table / device map / pool
// / dispatcher.
type Engine struct {
	numCPU int
	dm *devmap.Map
	gt *group.Table
	pl *pool.Pool
	disp *dispatch.Dispatcher
	global *stats.Global

	cpus []perCPU

	dropLog *nlog.RateLimited
}

func New(numCPU int, dm *devmap.Map, gt *group.Table, pl *pool.Pool, disp *dispatch.Dispatcher, global *stats.Global) *Engine {
	e := &Engine{
		numCPU: numCPU,
		dm: dm,
		gt: gt,
		pl: pl,
		disp: disp,
		global: global,
		cpus: make([]perCPU, numCPU),
		dropLog: nlog.NewRateLimited(time.Second),
	}
	for i := range e.cpus {
		e.cpus[i] = perCPU{batch: gc.NewBatch(), steer: newSteerCache()}
	}
	return e
}

// NumCPU reports the number of per-CPU shards this engine was built with.
func (e *Engine) NumCPU() int { return e.numCPU }

// Receive implements receive(skb, direct_flag), driven from
// three entry points: a protocol hook, a direct-capture shim,
// or the per-CPU idle timer (skb == nil, i.e. buf == nil here).
//
// cpu identifies the calling CPU; the caller (ingress shim or timer) is
// responsible for that identity, since this is a software model of a
// hard-pinned interrupt context rather than an actual one.
func (e *Engine) Receive(cpu int, buf *pool.Buf, ifindex, queue int32, vlanTCI uint16, directFlag bool) {
	// step 1: no-socket short-circuit.
	if !e.disp.AnyOpen() {
		if buf != nil {
			e.pl.CPU(cpu).Put(pool.FlavorRX, buf)
		}
		return
	}

	// step 2: softirqs-disabled / pinned-to-CPU for the duration is the
	// caller's contract in this model - see the Engine doc comment. Nothing
	// to do here beyond touching only e.cpus[cpu].
	pc := &e.cpus[cpu]
	cfg := cmn.GCO.Get()

	if buf != nil {
		prevEnqueue := pc.batch.LastEnqueue()
		e.enroll(cpu, pc, cfg, buf, ifindex, queue, vlanTCI, directFlag)
		if pc.batch.Size() < cfg.BatchLen && mono.Since(prevEnqueue) < cmn.AccumulateWindow {
			return // step 3e: still accumulating
		}
	}

	if pc.batch.Size() == 0 {
		return // idle timer fired with nothing pending
	}
	e.flush(cpu, pc, cfg)
}

// enroll is step 3: timestamp, optional VLAN strip, GC enrollment.
func (e *Engine) enroll(cpu int, pc *perCPU, cfg *cmn.Config, buf *pool.Buf, ifindex, queue int32, vlanTCI uint16, directFlag bool) {
	if pc.batch.Size() >= cmn.BatchCap {
		// GC already full: flush what we have before taking this frame,
		// so make_buff below is never called against a full batch.
		e.flush(cpu, pc, cfg)
	}

	payload, tci, stripped := stripVLAN(buf.Data, cfg.VlanUntag)
	if stripped {
		buf.Data = payload
	}
	if !stripped {
		tci = vlanTCI
	}
	tstamp := mono.NanoTime()

	idx := pc.batch.MakeBuff(buf, ifindex, queue, tci, tstamp)
	if idx < 0 {
		// Unreachable in steady state (we just flushed above), but never
		// silently drop a buffer reference if it somehow happens.
		e.dropLog.Warningf("gc_full", "cpu %d: GC batch full, dropping frame on ifindex %d", cpu, ifindex)
		e.pl.CPU(cpu).Put(pool.FlavorRX, buf)
		return
	}
	b := pc.batch.Buff(idx)
	b.CB.DirectFlag = directFlag
	b.CB.OrigTCI = tci
}

// flush is steps 4-10: classify, dispatch, forward, free, reset.
func (e *Engine) flush(cpu int, pc *perCPU, cfg *cmn.Config) {
	batch := pc.batch
	n := batch.Size()
	shard := e.global.Shard(cpu)
	shard.Recv.Add(int64(n))

	// step 6: DM lookup + group-mask union.
	var groupMaskUnion uint64
	for i := 0; i < n; i++ {
		b := batch.Buff(i)
		gm := e.dm.Lookup(b.Ifindex, b.Queue)
		b.CB.GroupMask = gm
		groupMaskUnion |= gm
	}

	// step 7: per-group classification + dispatch.
	gm := groupMaskUnion
	for gm != 0 {
		bit := gm & (-gm)
		gid := popBitIndex(bit)
		gm &^= bit
		e.processGroup(cpu, pc, batch, gid)
	}

	// step 8: kernel forwarding pass.
	if cfg.ForwardToKernel {
		for i := 0; i < n; i++ {
			b := batch.Buff(i)
			if !b.CB.DirectFlag {
				continue
			}
			needsClone := b.CB.Log.NumDevs > 0
			if e.disp.KernelForward(b, needsClone) {
				shard.Kern.Inc()
			} else {
				shard.Quit.Inc()
			}
		}
	}

	// step 9: device forwarding pass.
	for _, t := range batch.GetFwdTargets() {
		if t.BuffIdx < 0 || t.BuffIdx >= n {
			continue
		}
		b := batch.Buff(t.BuffIdx)
		if e.disp.DeviceForward(t.Ifindex, b.Payload) {
			shard.Frwd.Inc()
		} else {
			shard.Disc.Inc()
		}
	}

	// step 10: free all buffs, reset GC.
	batch.Free(e.pl.CPU(cpu))
	batch.Reset()
}

// processGroup is step 7: one group's filter+program pass over
// the batch, producing a per-socket bitmask and dispatching it.
func (e *Engine) processGroup(cpu int, pc *perCPU, batch *gc.Batch, gid int) {
	g := e.gt.Group(gid)
	bf := g.Filter()
	vf := g.VlanFiltersEnabled()
	vidTable := g.VidFilterTable()
	prog, progCtx := g.Program()
	gstats := g.StatsFor(cpu)

	var refs [cmn.BatchCap]*fanout.Buff
	var sockQueue [cmn.NumSockets]uint64
	var socketMask uint64

	bitMask := cos.BitSet64(uint(gid))
	n := batch.Size()
	for i := 0; i < n; i++ {
		b := batch.Buff(i)
		if b.CB.GroupMask&bitMask == 0 {
			continue
		}
		gstats.Recv.Inc()

		if bf != nil && !bf.Run(b) {
			gstats.Drop.Inc()
			continue
		}
		if vf {
			vid := b.VlanTCI & 0x0FFF
			if vidTable == nil || !vidTable.Allow(vid) {
				gstats.Drop.Inc()
				continue
			}
		}

		var sockMask uint64
		out := b
		if prog == nil {
			sockMask = g.SockMask(0)
		} else {
			pc.monad.Reset(1<<0, g)
			prevDevs, prevKern := b.CB.Log.NumDevs, b.CB.Log.ToKernel
			result := prog.Run(progCtx, b, &pc.monad)
			if result.Value == nil {
				gstats.Drop.Inc()
				continue
			}
			out = result.Value
			if newDevs := out.CB.Log.NumDevs - prevDevs; newDevs > 0 {
				for k := 0; k < newDevs; k++ {
					batch.AddFwdTarget(out.Ifindex, i)
				}
			}
			gstats.Frwd.Add(int64(out.CB.Log.NumDevs - prevDevs))
			gstats.Kern.Add(int64(out.CB.Log.ToKernel - prevKern))

			if pc.monad.Fanout.Type == fanout.KindDrop {
				gstats.Drop.Inc()
				continue
			}

			var eligible uint64
			for c := 0; c < cmn.NumClasses; c++ {
				if pc.monad.Fanout.ClassMask&(1<<uint(c)) != 0 {
					eligible |= g.SockMask(c)
				}
			}
			if pc.monad.Fanout.Type == fanout.KindSteer {
				sockMask = e.steer(pc, gid, eligible, pc.monad.Fanout.Hash)
			} else {
				sockMask = eligible
			}
		}

		refs[i] = out
		m := sockMask
		for m != 0 {
			b := m & (-m)
			idx := popBitIndex(b)
			sockQueue[idx] |= uint64(1) << uint(i)
			m &^= b
		}
		socketMask |= sockMask
	}

	m := socketMask
	for m != 0 {
		b := m & (-m)
		so := popBitIndex(b)
		m &^= b
		e.disp.CopyTo(int32(so), refs[:], sockQueue[so], int32(cpu), int32(gid))
	}
}

// steer implements steer-decision sub-algorithm: cache the
// expanded eligible-mask bit array per CPU per group, mix the hash, fold it
// into an index, return the single chosen socket's bit.
func (e *Engine) steer(pc *perCPU, gid int, eligible, hash uint64) uint64 {
	bits := pc.steer.bits(gid, eligible)
	k := len(bits)
	if k == 0 {
		return 0
	}
	h := hash ^ (hash >> 8) ^ (hash >> 16)
	idx := Fold(h, uint64(k))
	return uint64(1) << uint(bits[idx])
}

func popBitIndex(b uint64) int {
	n := 0
	for b > 1 {
		b >>= 1
		n++
	}
	return n
}
