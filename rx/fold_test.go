package rx

import "testing"

func TestFoldPowerOfTwoIsMask(t *testing.T) {
	for _, b := range []uint64{1, 2, 4, 8, 16, 64} {
		for a := uint64(0); a < 20; a++ {
			got := Fold(a, b)
			want := a & (b - 1)
			if got != want {
				t.Fatalf("Fold(%d,%d) = %d, want %d", a, b, got, want)
			}
		}
	}
}

func TestFoldSmallDivisorsUseModulo(t *testing.T) {
	for _, b := range []uint64{3, 5, 6, 7} {
		for a := uint64(0); a < 50; a++ {
			if got := Fold(a, b); got != a%b {
				t.Fatalf("Fold(%d,%d) = %d, want %d", a, b, got, a%b)
			}
		}
	}
}

func TestFoldAlwaysInRange(t *testing.T) {
	for _, b := range []uint64{1, 2, 3, 5, 6, 7, 9, 11, 17, 64, 100} {
		for a := uint64(0); a < 500; a++ {
			got := Fold(a, b)
			if got >= b {
				t.Fatalf("Fold(%d,%d) = %d, out of range [0,%d)", a, b, got, b)
			}
		}
	}
}

func TestFoldZeroDivisor(t *testing.T) {
	if got := Fold(123, 0); got != 0 {
		t.Fatalf("Fold(x,0) = %d, want 0", got)
	}
}
