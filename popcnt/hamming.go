// Package popcnt provides Hamming distance kernels for packed binary descriptors
// ([]uint64 words, bit i stored in word i/64 at position i%64). Automatically selects
// the best implementation based on GOARCH and CPU features.
package popcnt

import "math/bits"

var (
	distanceImpl     func(a, b []uint64) uint32
	distanceImplDesc string
)

func init() {
	// Default; dispatch files override in init() based on GOARCH.
	if distanceImpl == nil {
		distanceImpl = distanceTable
		distanceImplDesc = "Table"
	}
}

// Distance returns the Hamming distance between two packed bit strings: the number of
// set bits in a XOR b. Both slices must have the same length; extra words of the longer
// slice are ignored.
func Distance(a, b []uint64) uint32 {
	if len(a) != len(b) {
		n := min(len(a), len(b))
		a, b = a[:n], b[:n]
	}
	if len(a) == 0 {
		return 0
	}
	return distanceImpl(a, b)
}

// Count returns the number of set bits in a.
func Count(a []uint64) uint32 {
	var n int
	for _, w := range a {
		n += bits.OnesCount64(w)
	}
	return uint32(n)
}

// Desc returns a description of the current distance implementation (for logging).
func Desc() string {
	if distanceImplDesc != "" {
		return distanceImplDesc
	}
	return "Table"
}

// distanceUnrolled relies on the hardware population count (4-way unroll).
func distanceUnrolled(a, b []uint64) uint32 {
	var s0, s1, s2, s3 int
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += bits.OnesCount64(a[i+0] ^ b[i+0])
		s1 += bits.OnesCount64(a[i+1] ^ b[i+1])
		s2 += bits.OnesCount64(a[i+2] ^ b[i+2])
		s3 += bits.OnesCount64(a[i+3] ^ b[i+3])
	}
	for ; i < len(a); i++ {
		s0 += bits.OnesCount64(a[i] ^ b[i])
	}
	return uint32(s0 + s1 + s2 + s3)
}

// byteCounts[x] is the number of set bits in x.
var byteCounts = func() (t [256]uint8) {
	for i := range t {
		t[i] = uint8(bits.OnesCount8(uint8(i)))
	}
	return t
}()

// distanceTable is the lookup-table fallback for CPUs without a population count instruction.
func distanceTable(a, b []uint64) uint32 {
	var sum uint32
	for i := range a {
		x := a[i] ^ b[i]
		for x != 0 {
			sum += uint32(byteCounts[x&0xff])
			x >>= 8
		}
	}
	return sum
}
