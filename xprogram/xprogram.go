// Package xprogram provides reference Filter/Program implementations.
// filter_run/program_run themselves are external collaborators the core
// only calls through the fanout.Filter/fanout.Program interfaces; this
// package is not part of the core, it is the sample plugin surface the
// end-to-end scenario suite and the CLI's demo commands drive, using
// OneOfOne/xxhash for flow-hash steering keys and pierrec/lz4 for
// rate-limited diagnostic sample dumps.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package xprogram

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/pierrec/lz4/v3"

	"github.com/NVIDIA/rxfabric/fanout"
)

// EtherTypeFilter rejects every frame whose EtherType isn't in the allow
// set (used by scenario S3: "filter that rejects EtherType != 0x0800").
type EtherTypeFilter struct {
	Allow map[uint16]bool
}

func NewEtherTypeFilter(allow ...uint16) *EtherTypeFilter {
	m := make(map[uint16]bool, len(allow))
	for _, et := range allow {
		m[et] = true
	}
	return &EtherTypeFilter{Allow: m}
}

func (f *EtherTypeFilter) Run(buf *fanout.Buff) bool {
	et := etherType(buf.Payload)
	return f.Allow[et]
}

func etherType(payload []byte) uint16 {
	if len(payload) < 14 {
		return 0
	}
	return uint16(payload[12])<<8 | uint16(payload[13])
}

// FlowHashSteerProgram computes a stable per-flow hash over the frame's
// source/dest MAC (a stand-in for a full 5-tuple, since parsing IP/TCP is
// out of this core's scope) via xxhash, then issues a steer decision (used
// by scenario S2: "program sets fanout = steer, hash=...").
type FlowHashSteerProgram struct {
	ClassMask uint8
}

func NewFlowHashSteerProgram(classMask uint8) *FlowHashSteerProgram {
	return &FlowHashSteerProgram{ClassMask: classMask}
}

func (p *FlowHashSteerProgram) Run(ctx any, buf *fanout.Buff, m *fanout.Monad) fanout.ProgramResult {
	h := xxhash.Checksum64(flowKey(buf.Payload))
	m.Fanout = fanout.Fanout{Type: fanout.KindSteer, ClassMask: p.ClassMask, Hash: h}
	return fanout.ProgramResult{Value: buf}
}

func flowKey(payload []byte) []byte {
	if len(payload) < 12 {
		return payload
	}
	return payload[:12] // dst MAC + src MAC
}

// CopyAllProgram is the simplest possible Program: no filtering decision
// beyond what the group's own filter/VLAN gate already applied, fan out to
// every eligible socket in the given class.
type CopyAllProgram struct {
	ClassMask uint8
}

func (p *CopyAllProgram) Run(ctx any, buf *fanout.Buff, m *fanout.Monad) fanout.ProgramResult {
	m.Fanout = fanout.Fanout{Type: fanout.KindCopy, ClassMask: p.ClassMask}
	return fanout.ProgramResult{Value: buf}
}

// SampleDumper accumulates lz4-compressed copies of a capped number of
// frames for offline diagnosis, the sort of thing a program would do on the
// "copy" branch of a group's fanout decision when a group is flagged for
// packet-level debugging rather than live delivery. Compression keeps a long
// capture session's memory footprint bounded without truncating frames.
type SampleDumper struct {
	mtx sync.Mutex
	max int
	samples [][]byte
}

func NewSampleDumper(max int) *SampleDumper {
	return &SampleDumper{max: max}
}

// Add compresses and stores payload, dropping the oldest sample once max is
// reached. Returns false when the dumper has zero capacity or compression
// fails.
func (d *SampleDumper) Add(payload []byte) bool {
	if d.max == 0 {
		return false
	}
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return false
	}
	if err := w.Close(); err != nil {
		return false
	}
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if len(d.samples) >= d.max {
		d.samples = d.samples[1:]
	}
	d.samples = append(d.samples, buf.Bytes())
	return true
}

// Decompress returns the i-th stored sample's original bytes.
func (d *SampleDumper) Decompress(i int) ([]byte, error) {
	d.mtx.Lock()
	raw := d.samples[i]
	d.mtx.Unlock()
	r := lz4.NewReader(bytes.NewReader(raw))
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (d *SampleDumper) Len() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return len(d.samples)
}

// FixedHashKey packs a uint64 flow hash the way a richer program would once
// it has parsed an actual 5-tuple; exposed for tests that want a
// deterministic, caller-supplied hash instead of deriving one from MACs.
func FixedHashKey(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
