// Package ingress implements the driver/protocol-hook collaborators RX
// consumes: three direct-capture shims plus a protocol-hook handler, each
// deciding whether to invoke the engine at all before it ever touches a
// lock or an allocation.
//
// One handler per trigger, with a fast reject check before doing any real
// work, and a time.Ticker-driven periodic flush goroutine for the per-CPU
// idle timer.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package ingress

import (
	"context"
	"time"

	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/devmap"
	"github.com/NVIDIA/rxfabric/pool"
	"github.com/NVIDIA/rxfabric/rx"
)

// Frame is the minimal driver-supplied description of an arriving (or
// departing) frame; direct_flag and the Ethernet payload are all the
// shims need.
type Frame struct {
	Payload []byte
	Ifindex int32
	Queue int32
	VlanTCI uint16
}

// Shims wires DM.monitor gating in front of the three driver entry points:
// on a miss, the caller is expected to fall through to the OS path itself
// (this package has no OS path to fall through to).
type Shims struct {
	dm *devmap.Map
	engine *rx.Engine
	pool *pool.Pool
}

func NewShims(dm *devmap.Map, engine *rx.Engine, pl *pool.Pool) *Shims {
	return &Shims{dm: dm, engine: engine, pool: pl}
}

// NetifRxShim implements "netif_rx_shim": the classic (non-NAPI)
// driver ingress hook.
func (s *Shims) NetifRxShim(cpu int, f Frame) (consumed bool) {
	return s.direct(cpu, f)
}

// NetifReceiveShim implements "netif_receive_shim".
func (s *Shims) NetifReceiveShim(cpu int, f Frame) (consumed bool) {
	return s.direct(cpu, f)
}

// GroShim implements "gro_shim(napi, skb)": GRO-coalesced ingress;
// napi is opaque to the core (aggregation policy lives in the driver), only
// the resulting frame matters here.
func (s *Shims) GroShim(cpu int, napi any, f Frame) (consumed bool) {
	return s.direct(cpu, f)
}

func (s *Shims) direct(cpu int, f Frame) bool {
	if !s.dm.Monitor(f.Ifindex) {
		return false
	}
	buf := &pool.Buf{Data: f.Payload, Cap: len(f.Payload), Users: 1, Linear: true}
	s.engine.Receive(cpu, buf, f.Ifindex, f.Queue, f.VlanTCI, true)
	return true
}

// ProtocolHook implements "Protocol hook": a classic packet-type
// handler that filters loopback/self-peeked frames and obeys
// capture_incoming/capture_outgoing before invoking RX with direct=0.
type ProtocolHook struct {
	engine *rx.Engine
}

func NewProtocolHook(engine *rx.Engine) *ProtocolHook { return &ProtocolHook{engine: engine} }

// Direction distinguishes ingress vs egress for the capture_incoming /
// capture_outgoing gates.
type Direction uint8

const (
	DirIncoming Direction = iota
	DirOutgoing
)

// Handle is the packet-type callback. loopback and selfPeeked mirror the
// two skip conditions names explicitly.
func (h *ProtocolHook) Handle(cpu int, f Frame, dir Direction, loopback, selfPeeked bool) {
	if loopback || selfPeeked {
		return
	}
	cfg := cmn.GCO.Get()
	switch dir {
	case DirIncoming:
		if !cfg.CaptureIncoming {
			return
		}
	case DirOutgoing:
		if !cfg.CaptureOutgoing {
			return
		}
	}
	buf := &pool.Buf{Data: f.Payload, Cap: len(f.Payload), Users: 1, Linear: true}
	h.engine.Receive(cpu, buf, f.Ifindex, f.Queue, f.VlanTCI, false)
}

// Timer drives the per-CPU idle-flush tick.
type Timer struct {
	engine *rx.Engine
	period time.Duration
}

func NewTimer(engine *rx.Engine) *Timer {
	return &Timer{engine: engine, period: cmn.GCO.Get().IdleFlush}
}

// Run ticks once per cpu per period until ctx is canceled. One Timer
// goroutine per CPU, matching the per-CPU-only touch discipline RX itself
// enforces.
func (t *Timer) Run(ctx context.Context, cpu int) {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.engine.Receive(cpu, nil, 0, 0, 0, false)
		}
	}
}
