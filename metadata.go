package interntab

// metaWord is a snapshot of a bucket's 64-bit atomic metadata word.
//
// Layout (bit 63 is MSB):
//   - bit 63:     bucket-moved flag (sticky).
//   - bits 62..56: seven valid bits, one per slot.
//   - bits 55..0:  seven 8-bit lanes, one per slot. When the slot's valid
//     bit is set the lane holds the slot's H2 tag. When clear, the lane
//     encodes bit 7 = LOCKED, bit 6 = PARKED, bits 5..0 = low 6 bits of the
//     H2 of the in-progress insertion.
//
// LOCKED sits at the high bit of the lane, consistent with PARKED at bit 6
// and the 6-bit partial H2 below it.
type metaWord uint64

const (
	movedBit       = uint64(1) << 63
	validBitsShift = 56
	validBitsMask  = uint64(slotBitMask) << validBitsShift

	lockedLaneBit = byte(1 << 7)
	parkedLaneBit = byte(1 << 6)
	lowH2Mask     = byte(0x3F)
)

func validBitOf(i int) uint64 { return uint64(1) << uint(validBitsShift+i) }

func laneMaskOf(i int) uint64 { return uint64(0xFF) << uint(8*i) }

// testValid reports whether slot i's valid bit is set.
func (m metaWord) testValid(i int) bool {
	return uint64(m)&validBitOf(i) != 0
}

// validBits returns the seven valid bits packed into the low 7 bits of a
// byte, one per slot.
func (m metaWord) validBits() uint8 {
	return uint8(uint64(m)>>validBitsShift) & slotBitMask
}

// lane returns the raw 8-bit lane for slot i.
func (m metaWord) lane(i int) byte {
	return laneByte(uint64(m), i)
}

// bucketFull reports whether all seven valid bits are set.
func (m metaWord) bucketFull() bool {
	return m.validBits() == slotBitMask
}

// bucketMoved reports whether the sticky bucket-moved flag is set.
func (m metaWord) bucketMoved() bool {
	return uint64(m)&movedBit != 0
}

// match returns a bitMaskIter over the slots whose valid bit is set and
// whose lane equals h2. See match.go (groupMatch).
func (m metaWord) match(h2 byte) bitMaskIter {
	return groupMatch(uint64(m), m.validBits(), h2)
}

// notValidIndexes returns a bitMaskIter over the slots whose valid bit is
// clear, i.e. candidates for reservation.
func (m metaWord) notValidIndexes() bitMaskIter {
	return newBitMaskIter(^m.validBits() & slotBitMask)
}

// testLocked reports whether slot i's lane has LOCKED set. Only meaningful
// when the slot's valid bit is clear.
func (m metaWord) testLocked(i int) bool {
	return m.lane(i)&lockedLaneBit != 0
}

// testParked reports whether slot i's lane has PARKED set. Only meaningful
// when the slot's valid bit is clear.
func (m metaWord) testParked(i int) bool {
	return m.lane(i)&parkedLaneBit != 0
}

// countLockedSlots counts slots whose valid bit is clear but whose LOCKED
// bit is set: in-flight reservations captured in this snapshot.
func (m metaWord) countLockedSlots() int64 {
	var n int64
	for i := 0; i < slotsPerBucket; i++ {
		if !m.testValid(i) && m.testLocked(i) {
			n++
		}
	}
	return n
}

// withLocked returns the word with lane i rewritten to the LOCKED encoding
// for h2 (valid bit left clear). Used only as the candidate value of a CAS;
// it never mutates m.
func (m metaWord) withLocked(h2 byte, i int) metaWord {
	cleared := uint64(m) &^ laneMaskOf(i)
	lane := uint64(lockedLaneBit | (h2 & lowH2Mask))
	return metaWord(cleared | lane<<uint(8*i))
}

// withValid returns the word with lane i rewritten to the published H2 tag
// and the valid bit for slot i set. This discards whatever LOCKED/PARKED
// bits were in the lane; once a slot is valid its lane is the plain H2 tag
// for the rest of the table's lifetime.
func (m metaWord) withValid(h2 byte, i int) metaWord {
	cleared := uint64(m) &^ laneMaskOf(i)
	word := cleared | uint64(h2)<<uint(8*i) | validBitOf(i)
	return metaWord(word)
}

// withParked returns the word with PARKED set on lane i. Only valid to
// apply when the slot's valid bit is clear.
func (m metaWord) withParked(i int) metaWord {
	return metaWord(uint64(m) | uint64(parkedLaneBit)<<uint(8*i))
}

// reserveResult is the outcome of attempting to reserve slot i for an
// insertion with tag h2.
type reserveResult int

const (
	reserved reserveResult = iota
	occupiedWithSameH2
	alreadyReservedWithOtherH2
	alreadyReservedWithSameH2
	slotAvailableButGroupMoved
)
