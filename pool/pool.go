// Package pool implements the per-CPU skbuf pool (PP): a bounded recycling
// allocator for frame buffers, one stack per CPU per flavor.
//
// Per-CPU free lists, a plain atomic enable flag read on the hot path, and
// cmn/cos size-class helpers for the recycleability arithmetic.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package pool

import (
	"github.com/NVIDIA/rxfabric/cmn/atomic"
	"github.com/NVIDIA/rxfabric/cmn/cos"
)

// Flavor distinguishes the RX and TX stacks.
type Flavor int

const (
	FlavorRX Flavor = iota
	FlavorTX
)

// HeaderPad is the fixed slack every recycled buffer must retain past its
// payload end to accommodate header growth on reuse.
const HeaderPad = 64

// Buf is a pooled frame buffer. Users/Cloned/Linear mirror the skb fields
// recycleable() predicate inspects; the pool never mutates them,
// the RX/GC layer does as it manipulates the buffer's lifetime.
type Buf struct {
	Data []byte
	Cap int // total backing capacity, for the "end-offset accommodates size+pad" check
	Users int32
	Cloned bool
	Linear bool
	InIntr bool // interrupt-context flag; never recycled mid-interrupt
}

// Recycleable implements "recycleable(buf, size)": true iff not
// shared, not cloned, linear, not in interrupt context, and large enough to
// satisfy size+HeaderPad.
func Recycleable(b *Buf, size int) bool {
	if b == nil {
		return false
	}
	if b.Users != 1 || b.Cloned || !b.Linear || b.InIntr {
		return false
	}
	return b.Cap >= size+HeaderPad
}

// Stat counters are control-path visible only.
type Stat struct {
	InterruptDisabled atomic.Int64
	Shared atomic.Int64
	Cloned atomic.Int64
	TooSmall atomic.Int64
}

// stack is a bounded LIFO of reusable buffers for one CPU, one flavor.
type stack struct {
	bufs []*Buf
	cap int
}

func newStack(capacity int) *stack {
	return &stack{bufs: make([]*Buf, 0, capacity), cap: capacity}
}

func (s *stack) pop() *Buf {
	n := len(s.bufs)
	if n == 0 {
		return nil
	}
	b := s.bufs[n-1]
	s.bufs[n-1] = nil
	s.bufs = s.bufs[:n-1]
	return b
}

// push returns false (the buffer must go to the OS allocator instead) when
// the stack is already at capacity.
func (s *stack) push(b *Buf) bool {
	if len(s.bufs) >= s.cap {
		return false
	}
	s.bufs = append(s.bufs, b)
	return true
}

// CPU is one CPU's pair of pools (RX, TX). Touched only by its owning CPU.
type CPU struct {
	enabled atomic.Bool
	rx *stack
	tx *stack
	Stats Stat
}

func newCPU(capacity int) *CPU {
	c := &CPU{rx: newStack(capacity), tx: newStack(capacity)}
	c.enabled.Store(true)
	return c
}

func (c *CPU) stackFor(f Flavor) *stack {
	if f == FlavorTX {
		return c.tx
	}
	return c.rx
}

// Enable is the per-CPU on/off flag; reads on the hot path are plain
// atomic loads.
func (c *CPU) Enable(on bool) { c.enabled.Store(on) }

func (c *CPU) isEnabled() bool { return c.enabled.Load() }

// Get implements "get(pool) -> buf | none".
func (c *CPU) Get(f Flavor) *Buf {
	if !c.isEnabled() {
		return nil
	}
	return c.stackFor(f).pop()
}

// Put implements "put(pool, buf)": push, or release to the OS
// allocator (i.e. drop it, here - let the GC collect it) if full.
func (c *CPU) Put(f Flavor, b *Buf) {
	if !c.isEnabled() {
		return
	}
	c.stackFor(f).push(b)
}

// Alloc implements "alloc(size, pool)": reuse the head buffer if
// the pool is enabled and it's recycleable for size; otherwise a fresh OS
// allocation. Non-recycleable heads are popped and discarded (never pushed
// back half-checked) and the specific rejection reason is counted.
func (c *CPU) Alloc(f Flavor, size int) *Buf {
	if !c.isEnabled() {
		return osAlloc(size)
	}
	st := c.stackFor(f)
	head := st.pop()
	if head == nil {
		return osAlloc(size)
	}
	if head.InIntr {
		c.Stats.InterruptDisabled.Inc()
		return osAlloc(size)
	}
	if head.Users != 1 {
		c.Stats.Shared.Inc()
		return osAlloc(size)
	}
	if head.Cloned {
		c.Stats.Cloned.Inc()
		return osAlloc(size)
	}
	if !Recycleable(head, size) {
		c.Stats.TooSmall.Inc()
		return osAlloc(size)
	}
	head.Data = head.Data[:0]
	return head
}

// Purge implements "purge(pool): drain; returns count freed".
func (c *CPU) Purge(f Flavor) int {
	st := c.stackFor(f)
	n := len(st.bufs)
	st.bufs = st.bufs[:0]
	return n
}

func osAlloc(size int) *Buf {
	cap := int(cos.NextPow2(uint64(size + HeaderPad)))
	return &Buf{Data: make([]byte, 0, cap), Cap: cap, Users: 1, Linear: true}
}

// Pool is the whole per-CPU pool fabric: one CPU entry shift per core, sized
// at construction.
type Pool struct {
	cpus []*CPU
}

// New builds a Pool with numCPU shards, each capped at capacity per flavor.
func New(numCPU, capacity int) *Pool {
	p := &Pool{cpus: make([]*CPU, numCPU)}
	for i := range p.cpus {
		p.cpus[i] = newCPU(capacity)
	}
	return p
}

func (p *Pool) CPU(cpu int) *CPU { return p.cpus[cpu] }

func (p *Pool) NumCPU() int { return len(p.cpus) }
