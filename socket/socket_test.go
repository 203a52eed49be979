package socket

import "testing"

func TestNewRoundsCapacityToPowerOfTwo(t *testing.T) {
	s := New(1, EgressSocket, RxOpt{}, 5)
	if len(s.ring) != 8 {
		t.Fatalf("expected ring capacity 8, got %d", len(s.ring))
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	s := New(1, EgressSocket, RxOpt{}, 4)
	hdr := Header{Ifindex: 7, Len: 3}
	if !s.Push(hdr, []byte{1, 2, 3}) {
		t.Fatal("push into a non-full ring must succeed")
	}
	gotHdr, payload, ok := s.Pop()
	if !ok {
		t.Fatal("expected a ready entry")
	}
	if gotHdr.Ifindex != 7 || len(payload) != 3 {
		t.Fatalf("unexpected pop result: %+v %v", gotHdr, payload)
	}
}

func TestPushOnFullRingCountsLost(t *testing.T) {
	s := New(1, EgressSocket, RxOpt{}, 2)
	for i := 0; i < 2; i++ {
		if !s.Push(Header{}, nil) {
			t.Fatalf("push %d should have succeeded into a 2-capacity ring", i)
		}
	}
	if s.Push(Header{}, nil) {
		t.Fatal("push into a full ring must fail")
	}
	if s.Lost() != 1 {
		t.Fatalf("expected Lost()==1, got %d", s.Lost())
	}
}

func TestPopOnEmptyRingReturnsFalse(t *testing.T) {
	s := New(1, EgressSocket, RxOpt{}, 4)
	if _, _, ok := s.Pop(); ok {
		t.Fatal("Pop on an empty ring must report not-ok")
	}
}

func TestWaitUnblocksAfterPush(t *testing.T) {
	s := New(1, EgressSocket, RxOpt{}, 4)
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	s.Push(Header{}, nil)
	<-done
}
