// Package fanout defines the tagged-union fanout decision, the per-frame
// Monad scratchpad, and the Buff/ControlBlock types RX and the program
// evaluator exchange.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package fanout

// Kind is the fanout decision a program attaches to a frame.
type Kind uint8

const (
	KindDrop Kind = iota
	KindCopy
	KindSteer
)

// Fanout is the program's routing decision for one frame.
type Fanout struct {
	Type Kind
	ClassMask uint8 // bitmask over [0,C)
	Hash uint64
}

// Log records how many device forwards and kernel pushes a program issued
// while evaluating one frame.
type Log struct {
	NumDevs int
	ToKernel int
}

// ControlBlock is the per-buff side channel the GC attaches at enrollment
// time.
type ControlBlock struct {
	GroupMask uint64 // cached DM lookup result
	DirectFlag bool
	OrigTCI uint16 // original 802.1Q TCI, kept even after stripping
	Log Log
}

// Monad is the per-evaluation scratchpad: one instance per batch
// iteration, reset per frame, never heap-allocated per frame.
type Monad struct {
	Fanout Fanout
	State int64
	Group GroupRef
}

func (m *Monad) Reset(defaultClassMask uint8, group GroupRef) {
	m.Fanout = Fanout{Type: KindCopy, ClassMask: defaultClassMask}
	m.State = 0
	m.Group = group
}

// GroupRef is the narrow interface the fanout package needs back from
// group.Group without importing it (avoids an import cycle: group imports
// fanout for Buff/Monad, not the other way around).
type GroupRef interface {
	GID() int
}

// Buff is the unit RX/GC manipulate: a payload
// slice plus the side-channel control block. Buffs are referred to by
// small integer indices inside gc.Batch;
// Buff itself is the array element type.
type Buff struct {
	Payload []byte
	Ifindex int32
	Queue int32
	VlanTCI uint16
	Tstamp int64
	CB ControlBlock
	valid bool
}

func (b *Buff) Reset() {
	*b = Buff{}
}
