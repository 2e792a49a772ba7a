// Package bitint provides power-of-two bit manipulation helpers used when
// sizing FFT windows. All sampling frequencies this driver supports are
// themselves powers of two, so every window length the spectral stage
// allocates is one too.
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output  Explanation
//	4      4       Already power of 2 (preserved)
//	5      8       Next power after 5
//	0      1       Handle zero case
//	-1     1       Handle negative case
//
// The size-1 subtraction keeps exact powers of 2 from being doubled: for
// size=8, size-1=7 (0111), bits.Len64 returns 3, and 1<<3 is 8 again.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return int(1 << bits.Len64(uint64(size-1)))
}

// IsPowerOfTwo reports whether n is a power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
