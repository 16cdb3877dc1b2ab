package interntab

import "math/bits"

// slotsPerBucket is the number of slots (and metadata lanes) in one bucket,
// chosen so that one 64-bit metadata word plus seven slots fit into one or
// two cache lines.
const slotsPerBucket = 7

// slotBitMask masks a bitmask down to the seven lanes that actually exist;
// bit 7 of a lane byte never corresponds to a slot.
const slotBitMask = uint8(1<<slotsPerBucket) - 1

// bitMaskIter lazily enumerates the set-bit positions of a small bitmask,
// LSB-first. It is finite and non-restartable: once exhausted, next always
// reports false.
type bitMaskIter struct {
	mask uint8
}

func newBitMaskIter(mask uint8) bitMaskIter {
	return bitMaskIter{mask: mask & slotBitMask}
}

// next returns the index of the lowest set bit and clears it, or reports
// false once no bits remain.
func (it *bitMaskIter) next() (int, bool) {
	if it.mask == 0 {
		return 0, false
	}
	idx := bits.TrailingZeros8(it.mask)
	it.mask &= it.mask - 1
	return idx, true
}
