package sparsecs

import "math/bits"

// bitmask256 represents a set of up to 256 component keys. The component
// directory uses it to track which keys currently own a column, so that
// clone, destroy and the reflection-info queries only visit live columns.
type bitmask256 [4]uint64

// set enables the bit corresponding to the given component key.
func (m *bitmask256) set(bit uint8) {
	i := bit >> 6 // (bit / 64) to find the uint64 index
	o := bit & 63 // (bit % 64) to find the bit offset
	m[i] |= uint64(1) << uint64(o)
}

// containsBit checks if a specific bit is set in the mask.
func (m bitmask256) containsBit(bit uint8) bool {
	i := bit >> 6
	o := bit & 63
	return (m[i] & (uint64(1) << uint64(o))) != 0
}

// count returns the number of set bits.
func (m bitmask256) count() int {
	return bits.OnesCount64(m[0]) + bits.OnesCount64(m[1]) +
		bits.OnesCount64(m[2]) + bits.OnesCount64(m[3])
}

// each calls fn for every set bit in ascending order. Iteration stops early
// when fn returns false.
func (m bitmask256) each(fn func(bit uint8) bool) {
	for i, word := range m {
		for word != 0 {
			o := bits.TrailingZeros64(word)
			if !fn(uint8(i<<6 | o)) {
				return
			}
			word &= word - 1
		}
	}
}

// bitset is a fixed-length presence bitmap sized once at creation. Columns
// use it for presence, the entity directory for liveness.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)>>6)
}

func (b bitset) set(i uint32) {
	b[i>>6] |= uint64(1) << (i & 63)
}

func (b bitset) unset(i uint32) {
	b[i>>6] &^= uint64(1) << (i & 63)
}

// test reports whether bit i is set. Out-of-range indices report false.
func (b bitset) test(i uint32) bool {
	w := int(i >> 6)
	if w >= len(b) {
		return false
	}
	return b[w]&(uint64(1)<<(i&63)) != 0
}

func (b bitset) reset() {
	clear(b)
}
