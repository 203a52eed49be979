package group

import (
	"encoding/binary"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// BitmapVidFilter is the exact per-VID accept table describes
// literally ("vid_filters[4096]"): one bit per VLAN id, checked and set
// without allocation on the hot path.
type BitmapVidFilter struct {
	bits [cmnNumVIDWords]uint64
}

const cmnNumVIDWords = 4096 / 64

func NewBitmapVidFilter() *BitmapVidFilter { return &BitmapVidFilter{} }

func (f *BitmapVidFilter) Allow(vid uint16) bool {
	w, b := vid/64, vid%64
	return f.bits[w]&(uint64(1)<<b) != 0
}

func (f *BitmapVidFilter) Set(vid uint16, allow bool) {
	w, b := vid/64, vid%64
	if allow {
		f.bits[w] |= uint64(1) << b
	} else {
		f.bits[w] &^= uint64(1) << b
	}
}

// CuckooVidFilter is a compact, opt-in alternative to BitmapVidFilter for
// deployments that only ever allow a sparse subset of VIDs and would rather
// pay a small false-positive rate than reserve 512 bytes per group.
type CuckooVidFilter struct {
	f *cuckoo.Filter
}

func NewCuckooVidFilter(capacity uint) *CuckooVidFilter {
	return &CuckooVidFilter{f: cuckoo.NewFilter(capacity)}
}

func (f *CuckooVidFilter) Insert(vid uint16) bool {
	return f.f.InsertUnique(vidKey(vid))
}

func (f *CuckooVidFilter) Delete(vid uint16) bool {
	return f.f.Delete(vidKey(vid))
}

func (f *CuckooVidFilter) Allow(vid uint16) bool {
	return f.f.Lookup(vidKey(vid))
}

func vidKey(vid uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], vid)
	return b[:]
}
