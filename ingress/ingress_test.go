/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package ingress

import (
	"context"
	"testing"
	"time"

	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/devmap"
	"github.com/NVIDIA/rxfabric/dispatch"
	"github.com/NVIDIA/rxfabric/group"
	"github.com/NVIDIA/rxfabric/pool"
	"github.com/NVIDIA/rxfabric/rx"
	"github.com/NVIDIA/rxfabric/socket"
	"github.com/NVIDIA/rxfabric/stats"
	"github.com/NVIDIA/rxfabric/xreg"
)

func newTestEngine(t *testing.T) (*rx.Engine, *devmap.Map) {
	t.Helper()
	dm := devmap.New()
	reclaim := xreg.NewReclaimer()
	reclaim.SetGracePeriod(time.Millisecond)
	gt := group.NewTable(1, dm, reclaim)
	pl := pool.New(1, 16)
	disp := dispatch.New(nil, nil)
	global := stats.NewGlobal(1)
	engine := rx.New(1, dm, gt, pl, disp, global)

	gid, err := gt.JoinFree(0, 0x1, group.PolicyShared, 1)
	if err != nil {
		t.Fatalf("JoinFree: %v", err)
	}
	s := socket.New(0, socket.EgressSocket, socket.RxOpt{CapLen: 1500}, 16)
	disp.RegisterSocket(s)
	dm.Attach(9, 0, uint(gid))
	return engine, dm
}

func ethFrame(etherType uint16) []byte {
	p := make([]byte, 32)
	p[12] = byte(etherType >> 8)
	p[13] = byte(etherType)
	return p
}

func TestShimsDirectCaptureConsumesMonitoredIfindex(t *testing.T) {
	engine, dm := newTestEngine(t)
	pl := pool.New(1, 16)
	s := NewShims(dm, engine, pl)

	consumed := s.NetifRxShim(0, Frame{Payload: ethFrame(0x0800), Ifindex: 9, Queue: 0})
	if !consumed {
		t.Fatal("expected NetifRxShim to consume a frame on a monitored ifindex")
	}
}

func TestShimsIgnoreUnmonitoredIfindex(t *testing.T) {
	engine, dm := newTestEngine(t)
	pl := pool.New(1, 16)
	s := NewShims(dm, engine, pl)

	consumed := s.NetifReceiveShim(0, Frame{Payload: ethFrame(0x0800), Ifindex: 404, Queue: 0})
	if consumed {
		t.Fatal("expected the shim to reject an ifindex no group is monitoring")
	}
}

func TestGroShimDelegatesToDirectCapture(t *testing.T) {
	engine, dm := newTestEngine(t)
	pl := pool.New(1, 16)
	s := NewShims(dm, engine, pl)

	consumed := s.GroShim(0, nil, Frame{Payload: ethFrame(0x0800), Ifindex: 9, Queue: 0})
	if !consumed {
		t.Fatal("expected GroShim to consume a frame on a monitored ifindex")
	}
}

func TestProtocolHookSkipsLoopbackAndSelfPeeked(t *testing.T) {
	engine, _ := newTestEngine(t)
	h := NewProtocolHook(engine)

	// Neither call should panic nor touch the engine; there is no direct
	// observable beyond "did not block on a closed dispatcher", so this
	// mainly guards the early-return branches stay intact.
	h.Handle(0, Frame{Ifindex: 9}, DirIncoming, true, false)
	h.Handle(0, Frame{Ifindex: 9}, DirIncoming, false, true)
}

func TestProtocolHookObeysCaptureDirectionGates(t *testing.T) {
	engine, _ := newTestEngine(t)
	h := NewProtocolHook(engine)

	orig := cmn.GCO.Get()
	defer cmn.GCO.Put(orig)

	cfg := *orig
	cfg.CaptureIncoming = false
	cfg.CaptureOutgoing = false
	cmn.GCO.Put(&cfg)

	// With both gates closed, Handle must return without reaching the
	// engine; again there is no direct observable short of not panicking,
	// since newTestEngine does not hand back the socket it registers.
	h.Handle(0, Frame{Ifindex: 9, Payload: ethFrame(0x0800)}, DirIncoming, false, false)
	h.Handle(0, Frame{Ifindex: 9, Payload: ethFrame(0x0800)}, DirOutgoing, false, false)
}

func TestTimerRunTicksUntilContextCanceled(t *testing.T) {
	engine, _ := newTestEngine(t)
	timer := &Timer{engine: engine, period: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		timer.Run(ctx, 0)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timer.Run did not return after context cancellation")
	}
}

func TestNewTimerAdoptsConfiguredIdleFlushPeriod(t *testing.T) {
	engine, _ := newTestEngine(t)
	timer := NewTimer(engine)
	if timer.period != cmn.GCO.Get().IdleFlush {
		t.Fatalf("expected period %v, got %v", cmn.GCO.Get().IdleFlush, timer.period)
	}
}
