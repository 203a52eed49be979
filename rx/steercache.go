package rx

import "github.com/NVIDIA/rxfabric/cmn/cos"

// steerCache is one CPU's per-group memo of the last "eligible" socket mask
// it steered against, plus the expanded array of set-bit positions: each
// CPU caches the last eligible mask and its expanded index array so
// repeated frames to the same group share the expansion cost.
//
// Indexed by gid; only ever touched by the owning CPU, so no
// synchronization is needed.
type steerCache struct {
	mask [64][]int // per-gid: nil until first steer against that gid
	eligible [64]uint64
}

func newSteerCache() *steerCache { return &steerCache{} }

// bits returns the expanded, ascending bit-position array for eligible,
// recomputing it only when eligible differs from the cached value for gid.
func (c *steerCache) bits(gid int, eligible uint64) []int {
	if c.eligible[gid] == eligible && c.mask[gid] != nil {
		return c.mask[gid]
	}
	out := make([]int, 0, cos.PopCount64(eligible))
	m := eligible
	for m != 0 {
		b := m & (-m) // lowest set bit
		idx := bitIndex(b)
		out = append(out, idx)
		m &^= b
	}
	c.eligible[gid] = eligible
	c.mask[gid] = out
	return out
}

func bitIndex(b uint64) int {
	n := 0
	for b > 1 {
		b >>= 1
		n++
	}
	return n
}
