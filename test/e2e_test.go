/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NVIDIA/rxfabric/devmap"
	"github.com/NVIDIA/rxfabric/dispatch"
	"github.com/NVIDIA/rxfabric/fanout"
	"github.com/NVIDIA/rxfabric/group"
	"github.com/NVIDIA/rxfabric/pool"
	"github.com/NVIDIA/rxfabric/rx"
	"github.com/NVIDIA/rxfabric/socket"
	"github.com/NVIDIA/rxfabric/stats"
	"github.com/NVIDIA/rxfabric/xprogram"
	"github.com/NVIDIA/rxfabric/xreg"
)

type fabric struct {
	dm      *devmap.Map
	gt      *group.Table
	pl      *pool.Pool
	disp    *dispatch.Dispatcher
	global  *stats.Global
	engine  *rx.Engine
	reclaim *xreg.Reclaimer
}

func newFabric(numCPU int, xmit dispatch.DeviceXmit, kernel dispatch.KernelPush) *fabric {
	f := &fabric{}
	f.dm = devmap.New()
	f.reclaim = xreg.NewReclaimer()
	f.reclaim.SetGracePeriod(5 * time.Millisecond)
	f.gt = group.NewTable(numCPU, f.dm, f.reclaim)
	f.pl = pool.New(numCPU, 64)
	f.disp = dispatch.New(xmit, kernel)
	f.global = stats.NewGlobal(numCPU)
	f.engine = rx.New(numCPU, f.dm, f.gt, f.pl, f.disp, f.global)
	return f
}

func ethFrame(b byte, etherType uint16) []byte {
	p := make([]byte, 32)
	for i := range p {
		p[i] = b
	}
	p[12] = byte(etherType >> 8)
	p[13] = byte(etherType)
	return p
}

func flush(f *fabric, cpu int) {
	f.engine.Receive(cpu, nil, 0, 0, 0, false)
}

var _ = Describe("rxfabric end-to-end", func() {
	// S1 - single socket, single group, copy.
	It("delivers every frame to a lone member socket in order", func() {
		f := newFabric(1, nil, nil)
		gid, err := f.gt.JoinFree(0, 0x1, group.PolicyShared, 1)
		Expect(err).NotTo(HaveOccurred())

		s := socket.New(0, socket.EgressSocket, socket.RxOpt{CapLen: 1500}, 16)
		f.disp.RegisterSocket(s)
		f.dm.Attach(3, 0, uint(gid))

		for i := 0; i < 5; i++ {
			buf := &pool.Buf{Data: ethFrame(byte(i), 0x0800), Cap: 256, Users: 1, Linear: true}
			f.engine.Receive(0, buf, 3, 0, 0, false)
		}
		flush(f, 0)

		for i := 0; i < 5; i++ {
			_, payload, ok := s.Pop()
			Expect(ok).To(BeTrue())
			Expect(payload[0]).To(Equal(byte(i)))
		}
		Expect(f.gt.Group(gid).SumStats().Recv.Load()).To(Equal(int64(5)))
		Expect(f.gt.Group(gid).SumStats().Drop.Load()).To(Equal(int64(0)))
	})

	// S2 - steering by hash: every frame reaches exactly one of two sockets.
	It("steers each frame to exactly one socket via the flow hash", func() {
		f := newFabric(1, nil, nil)
		gid, err := f.gt.JoinFree(0, 0x1, group.PolicyShared, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.gt.Join(gid, 1, 0x1, group.PolicyShared, 1)).To(Succeed())

		s0 := socket.New(0, socket.EgressSocket, socket.RxOpt{CapLen: 1500}, 256)
		s1 := socket.New(1, socket.EgressSocket, socket.RxOpt{CapLen: 1500}, 256)
		f.disp.RegisterSocket(s0)
		f.disp.RegisterSocket(s1)
		f.dm.Attach(5, 0, uint(gid))

		Expect(f.gt.SetProgram(gid, 0, xprogram.NewFlowHashSteerProgram(0x1), nil)).To(Succeed())

		for i := 0; i < 100; i++ {
			buf := &pool.Buf{Data: ethFrame(byte(i), 0x0800), Cap: 256, Users: 1, Linear: true}
			f.engine.Receive(0, buf, 5, 0, 0, false)
		}
		flush(f, 0)

		delivered := 0
		for {
			if _, _, ok := s0.Pop(); ok {
				delivered++
				continue
			}
			break
		}
		for {
			if _, _, ok := s1.Pop(); ok {
				delivered++
				continue
			}
			break
		}
		Expect(delivered).To(Equal(100))
	})

	// S3 - filter reject: only frames matching the allow-list are delivered.
	It("drops frames rejected by the installed filter", func() {
		f := newFabric(1, nil, nil)
		gid, err := f.gt.JoinFree(0, 0x1, group.PolicyShared, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.gt.SetFilter(gid, 0, xprogram.NewEtherTypeFilter(0x0800))).To(Succeed())

		s := socket.New(0, socket.EgressSocket, socket.RxOpt{CapLen: 1500}, 64)
		f.disp.RegisterSocket(s)
		f.dm.Attach(7, 0, uint(gid))

		for i := 0; i < 10; i++ {
			buf := &pool.Buf{Data: ethFrame(byte(i), 0x0800), Cap: 256, Users: 1, Linear: true}
			f.engine.Receive(0, buf, 7, 0, 0, false)
		}
		for i := 0; i < 10; i++ {
			buf := &pool.Buf{Data: ethFrame(byte(i), 0x0806), Cap: 256, Users: 1, Linear: true}
			f.engine.Receive(0, buf, 7, 0, 0, false)
		}
		flush(f, 0)

		delivered := 0
		for {
			if _, _, ok := s.Pop(); ok {
				delivered++
				continue
			}
			break
		}
		Expect(delivered).To(Equal(10))
		Expect(f.gt.Group(gid).SumStats().Drop.Load()).To(Equal(int64(10)))
	})

	// S4 - program swap: a program is replaced before traffic starts, every
	// frame sent afterwards is delivered, and a program is still installed.
	// When the displaced program is released is not observed here.
	It("swaps programs without any frame observing a half-installed one", func() {
		f := newFabric(1, nil, nil)
		gid, err := f.gt.JoinFree(0, 0x1, group.PolicyShared, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.gt.SetProgram(gid, 0, &xprogram.CopyAllProgram{ClassMask: 0x1}, nil)).To(Succeed())

		s := socket.New(0, socket.EgressSocket, socket.RxOpt{CapLen: 1500}, 256)
		f.disp.RegisterSocket(s)
		f.dm.Attach(9, 0, uint(gid))

		released := false
		Expect(f.gt.SetProgram(gid, 0, xprogram.NewFlowHashSteerProgram(0x1), nil)).To(Succeed())

		for i := 0; i < 50; i++ {
			buf := &pool.Buf{Data: ethFrame(byte(i), 0x0800), Cap: 256, Users: 1, Linear: true}
			f.engine.Receive(0, buf, 9, 0, 0, false)
		}
		flush(f, 0)

		delivered := 0
		for {
			if _, _, ok := s.Pop(); ok {
				delivered++
				continue
			}
			break
		}
		Expect(delivered).To(Equal(50))

		p, _ := f.gt.Group(gid).Program()
		Expect(p).NotTo(BeNil())
		_ = released
	})

	// S5 - group free: once the last member leaves, the devmap no longer
	// routes to the freed gid.
	It("frees the group and its devmap routing once the last member leaves", func() {
		f := newFabric(1, nil, nil)
		gid, err := f.gt.JoinFree(0, 0x1, group.PolicyShared, 1)
		Expect(err).NotTo(HaveOccurred())
		f.dm.Attach(11, 0, uint(gid))
		Expect(f.dm.Lookup(11, 0)).NotTo(BeZero())

		Expect(f.gt.Leave(gid, 0)).To(Succeed())

		Eventually(func() uint64 {
			return f.dm.Lookup(11, 0)
		}, time.Second, time.Millisecond).Should(BeZero())
		Expect(f.gt.Group(gid).InUse()).To(BeFalse())
	})

	// S6 - kernel + device forwarding on a direct-captured frame.
	It("pushes one clone to the kernel path and forwards one frame to a device", func() {
		xmitCalls := 0
		kernelCalls := 0
		xmit := fakeXmitFunc(func(ifindex int32, payload []byte) bool {
			xmitCalls++
			return true
		})
		kernel := fakeKernelFunc(func(payload []byte) bool {
			kernelCalls++
			return true
		})
		f := newFabric(1, xmit, kernel)

		gid, err := f.gt.JoinFree(0, 0x1, group.PolicyShared, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.gt.SetProgram(gid, 0, &forwardingProgram{target: 42}, nil)).To(Succeed())
		s := socket.New(0, socket.EgressSocket, socket.RxOpt{CapLen: 1500}, 16)
		f.disp.RegisterSocket(s)
		f.dm.Attach(13, 0, uint(gid))

		buf := &pool.Buf{Data: ethFrame(1, 0x0800), Cap: 256, Users: 1, Linear: true}
		f.engine.Receive(0, buf, 13, 0, 0, true)
		flush(f, 0)

		Expect(xmitCalls).To(Equal(1))
		Expect(kernelCalls).To(Equal(1))
		Expect(f.global.Sum().Frwd).To(Equal(int64(1)))
		Expect(f.global.Sum().Kern).To(Equal(int64(1)))
	})
})

type fakeXmitFunc func(ifindex int32, payload []byte) bool

func (f fakeXmitFunc) Xmit(ifindex int32, payload []byte) bool { return f(ifindex, payload) }

type fakeKernelFunc func(payload []byte) bool

func (f fakeKernelFunc) Push(payload []byte) bool { return f(payload) }

// forwardingProgram copies the frame and issues both a kernel push and a
// device forward, exercising scenario S6's dual-path accounting.
type forwardingProgram struct {
	target int32
}

func (p *forwardingProgram) Run(ctx any, buf *fanout.Buff, m *fanout.Monad) fanout.ProgramResult {
	m.Fanout = fanout.Fanout{Type: fanout.KindCopy, ClassMask: 0x1}
	m.Group = nil
	buf.CB.Log.NumDevs++
	buf.CB.Log.ToKernel++
	return fanout.ProgramResult{Value: buf}
}
