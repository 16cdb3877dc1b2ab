package interntab

import (
	"runtime"
	"sync"

	"go.uber.org/atomic"
)

// table is one node of the forward migration chain: an open-addressed array
// of buckets plus the bookkeeping needed to grow into a successor without
// blocking concurrent inserts.
type table[T any] struct {
	buckets     []bucket[T]
	bucketMask  uint64
	resizeLimit uint64

	next     atomic.Pointer[table[T]]
	nextOnce sync.Once

	// toBeMoved starts at -len(buckets) and is driven to exactly zero by
	// migration contributions (see bulkTransfer) and by in-flight inserts
	// that complete on an already-moved bucket (see finishInsert). Zero
	// means every element has been deposited in the successor and this
	// table may be retired.
	toBeMoved atomic.Int64

	park *parkTable
}

func newTable[T any](bucketCount uint64) *table[T] {
	t := &table[T]{
		buckets:     make([]bucket[T], bucketCount),
		bucketMask:  bucketCount - 1,
		resizeLimit: resizeLimitFor(bucketCount),
		park:        newParkTable(),
	}
	t.toBeMoved.Store(-int64(bucketCount))
	return t
}

// probeOutcome is the shape of what the probe loop found, shared by the
// user-facing intern path and the transfer-only path.
type probeOutcome int

const (
	outcomeFound probeOutcome = iota
	outcomeLocked
	outcomeMoved
	outcomeResizeNeeded
)

// lockedSlot identifies a slot this goroutine just won the reservation race
// for, along with the metadata snapshot observed at the moment of winning.
type lockedSlot struct {
	pos  uint64
	idx  int
	meta metaWord
}

// lockOrGetSlot is the retry body of the probe loop, for a single table:
// find an existing match, or win a slot to insert into, or discover the
// table must be probed no further (moved / needs resize).
func (tb *table[T]) lockOrGetSlot(hash uint64, eq func(T) bool) (probeOutcome, T, lockedSlot) {
	var zero T
	tag := h2(hash)
	seq := newProbeSeq(tb.bucketMask, hash, tb.resizeLimit)
	for {
		pos, ok := seq.next()
		if !ok {
			break
		}
		bkt := &tb.buckets[pos]
		m := bkt.snapshot()

		for it := m.match(tag); ; {
			idx, ok2 := it.next()
			if !ok2 {
				break
			}
			v := bkt.slotRef(idx)
			if eq(v) {
				return outcomeFound, v, lockedSlot{}
			}
		}

		if m.bucketFull() {
			continue
		}

		for it := m.notValidIndexes(); ; {
			idx, ok2 := it.next()
			if !ok2 {
				break
			}
			switch bkt.reserve(&m, tag, idx) {
			case reserved:
				return outcomeLocked, zero, lockedSlot{pos: pos, idx: idx, meta: m}
			case occupiedWithSameH2:
				if v := bkt.slotRef(idx); eq(v) {
					return outcomeFound, v, lockedSlot{}
				}
			case alreadyReservedWithSameH2:
				bkt.waitOnLockRelease(&m, idx, tb.park)
				if v := bkt.slotRef(idx); eq(v) {
					return outcomeFound, v, lockedSlot{}
				}
			case alreadyReservedWithOtherH2:
				// continue to next candidate slot
			case slotAvailableButGroupMoved:
				return outcomeMoved, zero, lockedSlot{}
			}
		}
	}
	return outcomeResizeNeeded, zero, lockedSlot{}
}

// lockSlotForTransfer is the simplified reserve path used only while
// migrating values into a successor: the source value is known not to
// collide with itself, so every non-Reserved/non-moved outcome is treated
// uniformly as "keep probing", and eq is never consulted.
func (tb *table[T]) lockSlotForTransfer(hash uint64) (probeOutcome, lockedSlot) {
	tag := h2(hash)
	seq := newProbeSeq(tb.bucketMask, hash, tb.resizeLimit)
	for {
		pos, ok := seq.next()
		if !ok {
			break
		}
		bkt := &tb.buckets[pos]
		m := bkt.snapshot()
		if m.bucketFull() {
			continue
		}
		for it := m.notValidIndexes(); ; {
			idx, ok2 := it.next()
			if !ok2 {
				break
			}
			switch bkt.reserve(&m, tag, idx) {
			case reserved:
				return outcomeLocked, lockedSlot{pos: pos, idx: idx, meta: m}
			case slotAvailableButGroupMoved:
				return outcomeMoved, lockedSlot{}
			default:
				// occupiedWithSameH2, alreadyReservedWithSameH2,
				// alreadyReservedWithOtherH2 all just mean "keep probing".
			}
		}
	}
	return outcomeResizeNeeded, lockedSlot{}
}

// finishInsert writes value into the slot this goroutine reserved and
// publishes it. If the bucket turned out to already be moved, it also
// forwards the value into the successor and, if that forwarding is what
// drives toBeMoved to zero, reports the table as fully retired.
func (tb *table[T]) finishInsert(hash uint64, value T, ls lockedSlot, hashOf func(T) uint64) bool {
	bkt := &tb.buckets[ls.pos]
	bkt.setSlot(ls.idx, value)
	moved := bkt.setValidAndUnpark(ls.meta, h2(hash), ls.idx, tb.park)
	if !moved {
		return false
	}
	tb.transferValueToNewer(hash, value, hashOf)
	return tb.toBeMoved.Add(-1) == 0
}

// get is the read-only probe. definitive reports whether the (value, found)
// result is the final answer for this query; if false, the caller must
// forward to this table's successor and retry there.
func (tb *table[T]) get(hash uint64, eq func(T) bool) (value T, found, definitive bool) {
	tag := h2(hash)
	seq := newProbeSeq(tb.bucketMask, hash, tb.resizeLimit)
	sawMoved := false
	for {
		pos, ok := seq.next()
		if !ok {
			break
		}
		bkt := &tb.buckets[pos]
		m := bkt.snapshot()

		for it := m.match(tag); ; {
			idx, ok2 := it.next()
			if !ok2 {
				break
			}
			if v := bkt.slotRef(idx); eq(v) {
				return v, true, true
			}
		}

		if m.bucketFull() {
			continue
		}
		if m.bucketMoved() {
			sawMoved = true
		}
		break
	}

	var zero T
	if sawMoved || tb.hasSuccessor() {
		return zero, false, false
	}
	return zero, false, true
}

func (tb *table[T]) hasSuccessor() bool {
	return tb.next.Load() != nil
}

// awaitNext spins until this table's successor pointer is visible. A
// successor table pointer is (or will very shortly be) installed before the
// thread that triggered it leaves the current table, so this window, when
// it is non-empty at all, is extremely short.
func (tb *table[T]) awaitNext() *table[T] {
	for {
		if n := tb.next.Load(); n != nil {
			return n
		}
		runtime.Gosched()
	}
}

// ensureSuccessor installs this table's successor exactly once (a one-shot
// guard over the atomic next pointer) and performs the bulk migration into
// it. Concurrent callers past the first observe next already set and simply
// wait for the bulk transfer to finish before returning.
func (tb *table[T]) ensureSuccessor(hashOf func(T) uint64) bool {
	var completed bool
	tb.nextOnce.Do(func() {
		successor := newTable[T](uint64(len(tb.buckets)) * 2)
		tb.next.Store(successor)
		completed = tb.bulkTransfer(successor, hashOf)
	})
	// completed is false for every caller except the one that ran Do's
	// function; that's fine, the caller only needs the successor pointer
	// (via awaitNext), which is true for all callers once Do returns.
	return completed
}

// bulkTransfer walks every bucket of tb and migrates its valid slots into
// successor.
func (tb *table[T]) bulkTransfer(successor *table[T], hashOf func(T) uint64) bool {
	var contribution int64
	for i := range tb.buckets {
		contribution += tb.buckets[i].transferBucket(successor, hashOf, tb.park)
	}
	return tb.toBeMoved.Add(contribution) == 0
}

// transferValueToNewer forwards a single (hash, value) pair into tb's
// successor chain, installing further successors as needed. It never waits
// on a slot lock and never calls eq; it can block in ensureSuccessor while
// another goroutine finishes migrating a table further along the chain.
func (tb *table[T]) transferValueToNewer(hash uint64, value T, hashOf func(T) uint64) {
	cur := tb
	for {
		outcome, ls := cur.lockSlotForTransfer(hash)
		switch outcome {
		case outcomeResizeNeeded:
			cur.ensureSuccessor(hashOf)
			cur = cur.awaitNext()
		case outcomeMoved:
			cur = cur.awaitNext()
		case outcomeLocked:
			cur.finishInsert(hash, value, ls, hashOf)
			return
		case outcomeFound:
			panic("interntab: transfer path observed outcomeFound, which it never produces")
		}
	}
}

// nextMovedPtr walks forward past tables whose migration has already fully
// completed, for the head-advance optimisation in the façade. It is purely
// a performance optimisation: correctness never depends on it.
func (tb *table[T]) nextMovedPtr() *table[T] {
	movedInterner := tb.awaitNext()
	for {
		if movedInterner.toBeMoved.Load() != 0 {
			return movedInterner
		}
		nxt := movedInterner.next.Load()
		if nxt == nil {
			return movedInterner
		}
		movedInterner = nxt
	}
}
