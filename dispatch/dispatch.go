// Package dispatch implements endpoint dispatch (ED): copying selected
// payloads into destination sockets' shared queues, or staging forwarding
// to devices/kernel.
//
// A fan-out discipline applies throughout: iterate targets, copy/serialize
// per target, count failures instead of aborting the batch.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"github.com/NVIDIA/rxfabric/cmn/atomic"
	"github.com/NVIDIA/rxfabric/fanout"
	"github.com/NVIDIA/rxfabric/socket"
)

// Stats are the dispatch-side counters.
type Stats struct {
	Lost atomic.Int64 // shared_queue_push returned full
	Frwd atomic.Int64 // device forward succeeded
	Disc atomic.Int64 // device forward failed
	Kern atomic.Int64 // kernel push succeeded
	Quit atomic.Int64 // kernel push clone failure
}

// Dispatcher owns the live socket table (by id) and the device-forwarding
// collaborator. One Dispatcher is shared across CPUs;
// CopyTo itself touches only the destination socket's lock-free ring, so no
// cross-CPU contention beyond what socket.Socket.Push already arbitrates.
type Dispatcher struct {
	sockets [64]*socket.Socket // index == socket id, "id in [0,S)"
	openCount atomic.Int64
	xmit DeviceXmit
	kernel KernelPush
	Stats Stats
}

// DeviceXmit is the lazy-xmit collaborator; its concrete transmit-thread
// implementation lives outside this package.
type DeviceXmit interface {
	Xmit(ifindex int32, payload []byte) bool
}

// KernelPush is the OS receive-path collaborator.
type KernelPush interface {
	Push(payload []byte) bool
}

func New(xmit DeviceXmit, kernel KernelPush) *Dispatcher {
	return &Dispatcher{xmit: xmit, kernel: kernel}
}

func (d *Dispatcher) RegisterSocket(s *socket.Socket) {
	if d.sockets[s.ID] == nil {
		d.openCount.Inc()
	}
	d.sockets[s.ID] = s
}

func (d *Dispatcher) UnregisterSocket(id int32) {
	if d.sockets[id] != nil {
		d.openCount.Dec()
	}
	d.sockets[id] = nil
}

func (d *Dispatcher) Socket(id int32) *socket.Socket { return d.sockets[id] }

// AnyOpen implements the step 1 "no-socket short-circuit" check:
// if no socket is open at all, RX drops every frame without counting recv.
func (d *Dispatcher) AnyOpen() bool { return d.openCount.Load() > 0 }

// CopyTo implements "copy_to(so, refs, frame_bitmask, cpu, gid)":
// iterates bits of frameBitmask ascending; for each selected frame, copies
// payload (truncated to so.caplen) plus the fixed header into the socket's
// shared ring and wakes a blocked reader if any.
//
// refs is indexed by batch position (the same bit positions frameBitmask
// addresses), per "GC buffs as indices".
func (d *Dispatcher) CopyTo(soID int32, refs []*fanout.Buff, frameBitmask uint64, cpu int32, gid int32) (lost int) {
	so := d.sockets[soID]
	if so == nil {
		return 0
	}
	mask := frameBitmask
	for mask != 0 {
		n := mask & (-mask)
		pos := bitPos(n)
		mask &^= n

		buf := refs[pos]
		if buf == nil {
			continue
		}
		capLen := so.Opt.CapLen
		payload := buf.Payload
		if capLen > 0 && capLen < len(payload) {
			payload = payload[:capLen]
		}
		hdr := socket.Header{
			CapLen: int32(len(payload)),
			Len: int32(len(buf.Payload)),
			Ifindex: buf.Ifindex,
			HWQueue: buf.Queue,
			Tstamp: buf.Tstamp,
			Commit: 0,
			GID: gid,
		}
		if !so.Push(hdr, payload) {
			d.Stats.Lost.Inc()
			lost++
		}
	}
	return lost
}

// KernelForward implements step 8: clone-or-reference and submit
// to the OS receive path. Returns true on success; while the caller (RX)
// attributes the outcome to its own global.kern/global.quit counters, this
// package's own Stats mirrors the same outcome for dispatch-local telemetry.
func (d *Dispatcher) KernelForward(buf *fanout.Buff, needsClone bool) bool {
	if d.kernel == nil {
		d.Stats.Quit.Inc()
		return false
	}
	payload := buf.Payload
	if needsClone {
		clone := make([]byte, len(payload))
		copy(clone, payload)
		payload = clone
	}
	ok := d.kernel.Push(payload)
	if ok {
		d.Stats.Kern.Inc()
	} else {
		d.Stats.Quit.Inc()
	}
	return ok
}

// DeviceForward implements step 9: lazy-xmit over the collected
// forward targets. Returns true on success.
func (d *Dispatcher) DeviceForward(ifindex int32, payload []byte) bool {
	if d.xmit == nil {
		d.Stats.Disc.Inc()
		return false
	}
	ok := d.xmit.Xmit(ifindex, payload)
	if ok {
		d.Stats.Frwd.Inc()
	} else {
		d.Stats.Disc.Inc()
	}
	return ok
}

func bitPos(n uint64) int {
	p := 0
	for n > 1 {
		n >>= 1
		p++
	}
	return p
}
