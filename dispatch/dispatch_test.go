package dispatch

import (
	"testing"

	"github.com/NVIDIA/rxfabric/fanout"
	"github.com/NVIDIA/rxfabric/socket"
)

type fakeXmit struct{ ok bool }

func (f fakeXmit) Xmit(int32, []byte) bool { return f.ok }

type fakeKernel struct{ ok bool }

func (f fakeKernel) Push([]byte) bool { return f.ok }

func TestAnyOpenTracksRegistration(t *testing.T) {
	d := New(nil, nil)
	if d.AnyOpen() {
		t.Fatal("a fresh dispatcher should report no open sockets")
	}
	s := socket.New(0, socket.EgressSocket, socket.RxOpt{}, 4)
	d.RegisterSocket(s)
	if !d.AnyOpen() {
		t.Fatal("AnyOpen must report true once a socket is registered")
	}
	d.UnregisterSocket(0)
	if d.AnyOpen() {
		t.Fatal("AnyOpen must report false once the only socket is unregistered")
	}
}

func TestCopyToDispatchesSelectedBitsOnly(t *testing.T) {
	d := New(nil, nil)
	s := socket.New(0, socket.EgressSocket, socket.RxOpt{CapLen: 1500}, 8)
	d.RegisterSocket(s)

	refs := []*fanout.Buff{
		{Payload: []byte("a")},
		{Payload: []byte("bb")},
		{Payload: []byte("ccc")},
	}
	lost := d.CopyTo(0, refs, 0b101, 0, 1)
	if lost != 0 {
		t.Fatalf("expected no losses, got %d", lost)
	}
	_, payload, ok := s.Pop()
	if !ok || string(payload) != "a" {
		t.Fatalf("expected first selected frame 'a', got %q ok=%v", payload, ok)
	}
	_, payload, ok = s.Pop()
	if !ok || string(payload) != "ccc" {
		t.Fatalf("expected second selected frame 'ccc', got %q ok=%v", payload, ok)
	}
	if _, _, ok = s.Pop(); ok {
		t.Fatal("bit 1 (\"bb\") was not selected and must not have been dispatched")
	}
}

func TestCopyToTruncatesToCapLen(t *testing.T) {
	d := New(nil, nil)
	s := socket.New(0, socket.EgressSocket, socket.RxOpt{CapLen: 2}, 4)
	d.RegisterSocket(s)

	refs := []*fanout.Buff{{Payload: []byte("hello")}}
	d.CopyTo(0, refs, 0b1, 0, 0)

	_, payload, ok := s.Pop()
	if !ok || len(payload) != 2 {
		t.Fatalf("expected payload truncated to caplen 2, got %q", payload)
	}
}

func TestKernelForwardNilKernelCountsQuit(t *testing.T) {
	d := New(nil, nil)
	if d.KernelForward(&fanout.Buff{Payload: []byte("x")}, false) {
		t.Fatal("forwarding with no kernel collaborator must fail")
	}
	if d.Stats.Quit.Load() != 1 {
		t.Fatalf("expected Quit counter 1, got %d", d.Stats.Quit.Load())
	}
}

func TestKernelForwardSuccess(t *testing.T) {
	d := New(nil, fakeKernel{ok: true})
	if !d.KernelForward(&fanout.Buff{Payload: []byte("x")}, true) {
		t.Fatal("expected kernel forward to succeed")
	}
	if d.Stats.Kern.Load() != 1 {
		t.Fatalf("expected Kern counter 1, got %d", d.Stats.Kern.Load())
	}
}

func TestDeviceForwardNilXmitCountsDisc(t *testing.T) {
	d := New(nil, nil)
	if d.DeviceForward(1, []byte("x")) {
		t.Fatal("forwarding with no device xmit collaborator must fail")
	}
	if d.Stats.Disc.Load() != 1 {
		t.Fatalf("expected Disc counter 1, got %d", d.Stats.Disc.Load())
	}
}

func TestDeviceForwardSuccess(t *testing.T) {
	d := New(fakeXmit{ok: true}, nil)
	if !d.DeviceForward(1, []byte("x")) {
		t.Fatal("expected device forward to succeed")
	}
	if d.Stats.Frwd.Load() != 1 {
		t.Fatalf("expected Frwd counter 1, got %d", d.Stats.Frwd.Load())
	}
}
