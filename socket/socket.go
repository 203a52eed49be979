// Package socket defines the opaque-to-the-core socket endpoint and its
// shared-memory-style producer contract. The core only ever calls
// Push, which wakes a waiting reader itself; everything else about ring layout is this package's own
// business.
//
// A single-producer-per-CPU discipline applies: each CPU's dispatch call
// is the only writer at the moment it runs, so the ring only needs to
// arbitrate across CPUs, not within one.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package socket

import (
	stdatomic "sync/atomic"

	"github.com/NVIDIA/rxfabric/cmn/atomic"
)

// EgressHint selects where a socket's accepted frames ultimately go: back
// out through the socket itself, or onward to a device.
type EgressHint uint8

const (
	EgressSocket EgressHint = iota
	EgressDevice
)

// RxOpt is the per-socket receive configuration.
type RxOpt struct {
	CapLen int
	Timestamp bool
}

// Header is the fixed-layout record ED copies ahead of every payload.
type Header struct {
	CapLen int32
	Len int32
	Ifindex int32
	HWQueue int32
	Tstamp int64
	Commit uint64
	GID int32
}

// entry is one ring slot: a header plus however many capped payload bytes
// were committed into it.
type entry struct {
	hdr Header
	payload []byte
	ready stdatomic.Bool
}

// Socket is one endpoint the engine can dispatch frames to.
type Socket struct {
	ID int32
	Egress EgressHint
	Opt RxOpt

	ring []entry
	mask uint64 // len(ring)-1, ring length is power of two
	tail stdatomic.Uint64 // next slot to reserve, CAS'd by producers
	head uint64 // next slot the (single) consumer reads; consumer-owned
	lost atomic.Int64
	waiters chan struct{} // buffered 1: non-blocking "someone's waiting" wake signal
}

// New builds a Socket with a power-of-two ring capacity.
func New(id int32, egress EgressHint, opt RxOpt, capacity int) *Socket {
	cap := nextPow2(capacity)
	return &Socket{
		ID: id,
		Egress: egress,
		Opt: opt,
		ring: make([]entry, cap),
		mask: uint64(cap - 1),
		waiters: make(chan struct{}, 1),
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p == 0 {
		p = 1
	}
	return p
}

// Push implements "shared_queue_push(socket, header, payload,
// caplen, gid) -> ok | full". Never blocks; a full ring counts as lost and
// returns false.
func (s *Socket) Push(hdr Header, payload []byte) bool {
	for {
		tail := s.tail.Load()
		nextHead := stdatomic.LoadUint64(&s.head)
		if tail-nextHead >= uint64(len(s.ring)) {
			s.lost.Inc()
			return false
		}
		if s.tail.CompareAndSwap(tail, tail+1) {
			slot := &s.ring[tail&s.mask]
			slot.hdr = hdr
			slot.payload = payload
			slot.ready.Store(true)
			s.wake()
			return true
		}
	}
}

// wake signals a blocked reader without ever blocking the producer.
func (s *Socket) wake() {
	select {
	case s.waiters <- struct{}{}:
	default:
	}
}

// Wait blocks the calling (consumer) goroutine until Push has signaled at
// least once since the last Wait call; Socket has no close operation. This is the
// consumer side of "reader wait-queue"; the RX path never calls
// it.
func (s *Socket) Wait() { <-s.waiters }

// Pop is the single-consumer read side; not used by the core, provided for
// the consumer half of the producer contract.
func (s *Socket) Pop() (Header, []byte, bool) {
	idx := s.head & s.mask
	slot := &s.ring[idx]
	if !slot.ready.Load() {
		return Header{}, nil, false
	}
	hdr, payload := slot.hdr, slot.payload
	slot.ready.Store(false)
	s.head++
	return hdr, payload, true
}

// Lost is the "full" counter.
func (s *Socket) Lost() int64 { return s.lost.Load() }
