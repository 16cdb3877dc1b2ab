package interntab

import (
	"unsafe"

	"go.uber.org/atomic"
)

// bucket is a cache-line-targeted cluster of slotsPerBucket slots plus one
// atomic metadata word. Go cannot force explicit cache-line alignment on a
// generic struct; this is treated as a performance-only gap, not something
// worth fighting the type system for.
type bucket[T any] struct {
	meta  atomic.Uint64
	slots [slotsPerBucket]T
}

// snapshot loads the metadata word. Ordering is whatever go.uber.org/atomic's
// Uint64.Load provides (sequentially consistent), which is at least as
// strong as the acquire ordering needed before reading a slot whose valid
// bit was observed set.
func (b *bucket[T]) snapshot() metaWord {
	return metaWord(b.meta.Load())
}

// setSlot writes slot i. Callers must hold LOCKED on lane i and must call
// this before the publishing CAS in setValidAndUnpark.
func (b *bucket[T]) setSlot(i int, v T) {
	b.slots[i] = v
}

// slotRef returns slot i's current value. Safe once the caller has observed
// slot i's valid bit set (or holds LOCKED on it itself).
func (b *bucket[T]) slotRef(i int) T {
	return b.slots[i]
}

// parkKey derives the address-keyed parking key for slot i: the bucket's
// metadata-word address offset by the slot index, so that waiters on
// distinct slots of the same bucket never collide.
func (b *bucket[T]) parkKey(i int) uint64 {
	return uint64(uintptr(unsafe.Pointer(&b.meta))) + uint64(i)
}

// reserve attempts to reserve slot i for an insertion tagged h2, against the
// snapshot m. On return, *m is refreshed to the latest observed word. This
// is a six-outcome decision table, each branch a bounded CAS loop over a
// local snapshot.
func (b *bucket[T]) reserve(m *metaWord, h2 byte, i int) reserveResult {
	for {
		if m.testValid(i) {
			if m.lane(i) == h2 {
				return occupiedWithSameH2
			}
			return alreadyReservedWithOtherH2
		}
		if m.testLocked(i) {
			if m.lane(i)&lowH2Mask == h2&lowH2Mask {
				return alreadyReservedWithSameH2
			}
			return alreadyReservedWithOtherH2
		}
		if m.bucketMoved() {
			return slotAvailableButGroupMoved
		}
		next := m.withLocked(h2, i)
		if b.meta.CompareAndSwap(uint64(*m), uint64(next)) {
			*m = next
			return reserved
		}
		*m = b.snapshot()
	}
}

// waitOnLockRelease blocks until slot i's valid bit is set, announcing
// PARKED on the lane first so that a concurrent setValidAndUnpark cannot
// race an unpark in before the park registers. *m is refreshed to the
// latest observed word before returning.
func (b *bucket[T]) waitOnLockRelease(m *metaWord, i int, park *parkTable) {
	for {
		if m.testValid(i) {
			return
		}
		if !m.testParked(i) {
			next := m.withParked(i)
			if !b.meta.CompareAndSwap(uint64(*m), uint64(next)) {
				*m = b.snapshot()
				continue
			}
			*m = next
		}
		key := b.parkKey(i)
		park.park(key, func() bool {
			return !metaWord(b.meta.Load()).testValid(i)
		})
		*m = b.snapshot()
	}
}

// setValidAndUnpark CASes lane i from its LOCKED encoding to the published
// H2 tag with the valid bit set, starting from snapshot m (the snapshot
// observed at the moment reserve() returned Reserved for this slot). On
// success it wakes any parked waiters on (bucket, i) if PARKED was present
// in that same pre-CAS snapshot, and reports whether the bucket was already
// marked moved.
//
// The pre-CAS snapshot, not the freshly-published post-state, is what is
// tested for PARKED: the newly-published lane is just the plain H2 tag and
// carries no memory of whether a waiter had announced itself, so testing
// the post-state would risk a lost wakeup whenever the published H2 value's
// bit 6 happens to be clear. Testing the snapshot that is about to be
// swapped away is the only snapshot that can carry an accurate PARKED
// observation forward.
func (b *bucket[T]) setValidAndUnpark(m metaWord, h2 byte, i int, park *parkTable) bool {
	for {
		next := m.withValid(h2, i)
		if b.meta.CompareAndSwap(uint64(m), uint64(next)) {
			if m.testParked(i) {
				park.unparkAll(b.parkKey(i))
			}
			return m.bucketMoved()
		}
		m = b.snapshot()
	}
}

// transferBucket is the migration step: mark the bucket moved, and if this
// call is the one that set the flag (0→1), re-hash and
// re-insert every slot that was valid in the snapshot captured at that
// instant. It returns the count of locked-but-not-yet-valid slots in that
// snapshot plus one for "this bucket finished" — the contribution the
// caller adds to the table-level toBeMoved counter — or 0 if a peer had
// already claimed this bucket.
func (b *bucket[T]) transferBucket(successor *table[T], hashOf func(T) uint64, park *parkTable) int64 {
	prior, first := b.markMoved()
	if !first {
		return 0
	}
	for it := newBitMaskIter(prior.validBits()); ; {
		idx, ok := it.next()
		if !ok {
			break
		}
		v := b.slotRef(idx)
		successor.transferValueToNewer(hashOf(v), v, hashOf)
	}
	return prior.countLockedSlots() + 1
}

// markMoved fetch-ORs the bucket-moved bit. It returns the snapshot
// observed immediately before the bit was set, and whether this call is the
// one that set it (false if some peer had already done so).
func (b *bucket[T]) markMoved() (prior metaWord, first bool) {
	for {
		cur := b.meta.Load()
		if cur&movedBit != 0 {
			return metaWord(cur), false
		}
		next := cur | movedBit
		if b.meta.CompareAndSwap(cur, next) {
			return metaWord(cur), true
		}
	}
}
