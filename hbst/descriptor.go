package hbst

import "github.com/ic-timon/hbst/popcnt"

// Descriptor is a fixed-width binary feature descriptor. Bit i lives in word i/64 at
// position i%64, so byte k of the raw representation holds bits 8k..8k+7 (LSB first).
// A descriptor must not be modified once it is wrapped in a Matchable.
type Descriptor struct {
	words []uint64
	bits  int
}

// NewDescriptor returns an all-zero descriptor of the given width.
func NewDescriptor(bits int) Descriptor {
	if bits < 0 {
		bits = 0
	}
	return Descriptor{words: make([]uint64, (bits+63)/64), bits: bits}
}

// NewFullDescriptor returns a descriptor of the given width with every bit set.
func NewFullDescriptor(bits int) Descriptor {
	d := NewDescriptor(bits)
	for i := range d.words {
		d.words[i] = ^uint64(0)
	}
	d.clearTail()
	return d
}

// DescriptorFromBytes builds a descriptor of len(raw)*8 bits, e.g. from an ORB or BRIEF
// descriptor row.
func DescriptorFromBytes(raw []byte) Descriptor {
	d := NewDescriptor(len(raw) * 8)
	for k, b := range raw {
		d.words[k/8] |= uint64(b) << (8 * uint(k%8))
	}
	return d
}

// Bits returns the descriptor width.
func (d Descriptor) Bits() int { return d.bits }

// Words returns the packed words. Caller must not modify them.
func (d Descriptor) Words() []uint64 { return d.words }

// Bit reports whether bit i is set.
func (d Descriptor) Bit(i int) bool {
	return d.words[i>>6]>>(uint(i)&63)&1 == 1
}

// Set sets bit i.
func (d Descriptor) Set(i int) {
	d.words[i>>6] |= 1 << (uint(i) & 63)
}

// Clear clears bit i.
func (d Descriptor) Clear(i int) {
	d.words[i>>6] &^= 1 << (uint(i) & 63)
}

// Flip inverts bit i.
func (d Descriptor) Flip(i int) {
	d.words[i>>6] ^= 1 << (uint(i) & 63)
}

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	w := make([]uint64, len(d.words))
	copy(w, d.words)
	return Descriptor{words: w, bits: d.bits}
}

// Bytes returns the raw representation, bits/8 bytes.
func (d Descriptor) Bytes() []byte {
	out := make([]byte, d.bits/8)
	d.putBytes(out)
	return out
}

func (d Descriptor) putBytes(dst []byte) {
	for k := range dst {
		dst[k] = byte(d.words[k/8] >> (8 * uint(k%8)))
	}
}

// Count returns the number of set bits.
func (d Descriptor) Count() int { return int(popcnt.Count(d.words)) }

// Distance returns the Hamming distance to o.
func (d Descriptor) Distance(o Descriptor) uint32 {
	return popcnt.Distance(d.words, o.words)
}

// Equal reports whether both descriptors have the same width and bits.
func (d Descriptor) Equal(o Descriptor) bool {
	return d.bits == o.bits && d.Distance(o) == 0
}

func (d Descriptor) clearTail() {
	if r := d.bits % 64; r != 0 && len(d.words) > 0 {
		d.words[len(d.words)-1] &= (uint64(1) << uint(r)) - 1
	}
}
