// Package group implements the group table (GT): fixed-size group
// membership, policy, installed filter/program, and per-group counters.
//
// A factory installs a group's filter/program once; the group's dm/program
// fields are thereafter read without the factory's lock, via an
// atomic.Pointer swap-then-grace-wait shape for replaceable shared
// references.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package group

import (
	stdatomic "sync/atomic"
	"sync"

	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/cmn/atomic"
	"github.com/NVIDIA/rxfabric/fanout"
)

// PersistentSlot is one of the group's M scratch-memory slots, with its own
// mutual exclusion so two programs evaluating different classes of the same
// group never contend on the same cache line.
type PersistentSlot struct {
	mtx sync.Mutex
	Data [256]byte
}

func (s *PersistentSlot) Lock() { s.mtx.Lock() }
func (s *PersistentSlot) Unlock() { s.mtx.Unlock() }

// Stats are the per-CPU counters from: {recv, drop, frwd, kern}.
// Each CPU shard is touched only by its owning CPU on the RX path; SumStats()
// adds across shards for control-plane/reporting reads.
type Stats struct {
	Recv atomic.Int64
	Drop atomic.Int64
	Frwd atomic.Int64
	Kern atomic.Int64
}

// Filter aliases fanout.Filter so control-path callers needn't import
// fanout directly for install calls.
type Filter = fanout.Filter

type programCell struct {
	p Program
	ctx any
}

// Program aliases fanout.Program.
type Program = fanout.Program

// VidFilter is the per-VID accept table contract;
// two implementations are provided (exact bitmap, compact cuckoo) per
// domain-stack wiring.
type VidFilter interface {
	Allow(vid uint16) bool
}

// Group is one fixed-indexed record of the group table.
type Group struct {
	idx int

	// control-path only, guarded by Table.mtx
	ownerID int32 // -1 == none
	creatorPID int32 // -1 == none (also the in-use flag, invariant)
	policy Policy
	instID string // install token of the last filter/program swap

	// hot-path, atomically updated
	sockMask [cmn.NumClasses]atomic.Uint64
	filterCell stdatomic.Pointer[Filter]
	programCell stdatomic.Pointer[programCell]
	vlanEnabled atomic.Bool
	vidFilter stdatomic.Pointer[VidFilter]
	generation atomic.Int64 // bumped on any membership/program change; exported via Generation()

	persistent [cmn.NumPersist]PersistentSlot

	statsPerCPU []Stats
	countersPerCPU [][cmn.NumCounters]atomic.Int64
}

// GID satisfies fanout.GroupRef.
func (g *Group) GID() int { return g.idx }

func newGroup(idx, numCPU int) *Group {
	g := &Group{idx: idx, creatorPID: -1, ownerID: -1}
	g.statsPerCPU = make([]Stats, numCPU)
	g.countersPerCPU = make([][cmn.NumCounters]atomic.Int64, numCPU)
	return g
}

// reinit resets a group back to its just-freed state before being reused by
// a fresh join.
func (g *Group) reinit(creatorPID int32) {
	g.creatorPID = creatorPID
	g.ownerID = -1
	g.policy = PolicyUndefined
	g.instID = ""
	for c := range g.sockMask {
		g.sockMask[c].Store(0)
	}
	g.filterCell.Store(nil)
	g.programCell.Store(nil)
	g.vlanEnabled.Store(false)
	g.vidFilter.Store(nil)
	g.generation.Inc()
	for i := range g.statsPerCPU {
		g.statsPerCPU[i] = Stats{}
	}
}

// InUse reports the invariant: a group is in-use iff
// creatorPID != none.
func (g *Group) InUse() bool { return g.creatorPID >= 0 }

// SockMask returns the current membership bitmask for class c (hot path).
func (g *Group) SockMask(c int) uint64 { return g.sockMask[c].Load() }

// allZeroMasks reports whether every class mask is empty.
func (g *Group) allZeroMasks() bool {
	for c := range g.sockMask {
		if g.sockMask[c].Load() != 0 {
			return false
		}
	}
	return true
}

// Filter returns the currently installed filter, or nil.
func (g *Group) Filter() Filter {
	p := g.filterCell.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Program returns the currently installed program and its context, or
// (nil, nil). Always read together, since they are installed together.
func (g *Group) Program() (Program, any) {
	c := g.programCell.Load()
	if c == nil {
		return nil, nil
	}
	return c.p, c.ctx
}

// VlanFiltersEnabled/VidFilterTable expose the VLAN-gating state.
func (g *Group) VlanFiltersEnabled() bool { return g.vlanEnabled.Load() }
func (g *Group) VidFilterTable() VidFilter {
	p := g.vidFilter.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Generation is a change counter, bumped whenever sock_mask or the installed program changes and recorded in
// snapshots. The RX steering cache does not read it; it re-expands only when the eligible mask itself differs.
func (g *Group) Generation() int64 { return g.generation.Load() }

// Persistent returns the handle for scratch slot i.
func (g *Group) Persistent(i int) *PersistentSlot { return &g.persistent[i] }

// Counter returns the per-CPU counter cell k for the calling CPU.
func (g *Group) Counter(cpu, k int) *atomic.Int64 { return &g.countersPerCPU[cpu][k] }

// StatsFor returns this CPU's stats shard, for lock-free increments on the
// RX path.
func (g *Group) StatsFor(cpu int) *Stats { return &g.statsPerCPU[cpu] }

// SumStats adds every per-CPU shard.
func (g *Group) SumStats() Stats {
	var s Stats
	for i := range g.statsPerCPU {
		s.Recv.Add(g.statsPerCPU[i].Recv.Load())
		s.Drop.Add(g.statsPerCPU[i].Drop.Load())
		s.Frwd.Add(g.statsPerCPU[i].Frwd.Load())
		s.Kern.Add(g.statsPerCPU[i].Kern.Load())
	}
	return s
}

func (g *Group) OwnerID() int32 { return g.ownerID }
func (g *Group) CreatorPID() int32 { return g.creatorPID }
func (g *Group) Policy() Policy { return g.policy }
func (g *Group) InstID() string { return g.instID }
