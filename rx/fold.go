package rx

import "github.com/NVIDIA/rxfabric/cmn/cos"

// Fold implements "fold(a, b)": integer-range reduction with the
// contract 0 <= fold(a,b) < b, and fold(a,b) == a & (b-1) whenever b is a
// power of two.
//
// Grounded on recovery from original_source/pf_q-group.c,
// which special-cases the small divisors the steering hash most commonly
// hits (group socket counts) before falling back to the general
// next-power-of-two-then-modulo scheme.
func Fold(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	if cos.IsPow2(b) {
		return a & (b - 1)
	}
	switch b {
	case 3, 5, 6, 7:
		return a % b
	}
	p := cos.NextPow2(b)
	r := a & (p - 1)
	if r < b {
		return r
	}
	return a % b
}
