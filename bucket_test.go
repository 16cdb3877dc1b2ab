package interntab

import (
	"sync"
	"testing"
	"time"
)

func TestBucketReserveFreshSlot(t *testing.T) {
	var b bucket[int]
	m := b.snapshot()
	result := b.reserve(&m, 0x55, 2)
	if result != reserved {
		t.Fatalf("got %v, want reserved", result)
	}
	if !m.testLocked(2) {
		t.Fatalf("expected LOCKED after reservation")
	}
}

func TestBucketReserveOccupiedSameH2(t *testing.T) {
	var b bucket[int]
	m := b.snapshot()
	b.reserve(&m, 0x55, 2)
	b.setSlot(2, 42)
	b.setValidAndUnpark(m, 0x55, 2, newParkTable())

	m2 := b.snapshot()
	if got := b.reserve(&m2, 0x55, 2); got != occupiedWithSameH2 {
		t.Fatalf("got %v, want occupiedWithSameH2", got)
	}
}

func TestBucketReserveOccupiedOtherH2(t *testing.T) {
	var b bucket[int]
	m := b.snapshot()
	b.reserve(&m, 0x55, 2)
	b.setSlot(2, 42)
	b.setValidAndUnpark(m, 0x55, 2, newParkTable())

	m2 := b.snapshot()
	if got := b.reserve(&m2, 0x12, 2); got != alreadyReservedWithOtherH2 {
		t.Fatalf("got %v, want alreadyReservedWithOtherH2", got)
	}
}

func TestBucketReserveLockedSameAndOtherH2(t *testing.T) {
	var b bucket[int]
	m := b.snapshot()
	b.reserve(&m, 0x05, 2) // low 6 bits = 0x05

	m2 := b.snapshot()
	if got := b.reserve(&m2, 0x45, 2); got != alreadyReservedWithSameH2 { // same low 6 bits, differs in bit 6
		t.Fatalf("got %v, want alreadyReservedWithSameH2", got)
	}
	m3 := b.snapshot()
	if got := b.reserve(&m3, 0x06, 2); got != alreadyReservedWithOtherH2 {
		t.Fatalf("got %v, want alreadyReservedWithOtherH2", got)
	}
}

func TestBucketReserveGroupMoved(t *testing.T) {
	var b bucket[int]
	b.markMoved()
	m := b.snapshot()
	if got := b.reserve(&m, 0x01, 0); got != slotAvailableButGroupMoved {
		t.Fatalf("got %v, want slotAvailableButGroupMoved", got)
	}
}

func TestBucketSetValidAndUnparkWakesWaiter(t *testing.T) {
	var b bucket[int]
	park := newParkTable()
	m := b.snapshot()
	b.reserve(&m, 0x20, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	start := make(chan struct{})
	go func() {
		defer wg.Done()
		wm := b.snapshot()
		close(start)
		b.waitOnLockRelease(&wm, 1, park)
		if !wm.testValid(1) {
			t.Errorf("waiter woke without valid bit set")
		}
	}()

	<-start
	time.Sleep(10 * time.Millisecond) // give the waiter a chance to announce PARKED
	b.setSlot(1, 7)
	b.setValidAndUnpark(m, 0x20, 1, park)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter was not woken")
	}
}

func TestBucketMarkMovedOnlyFirstCallerWins(t *testing.T) {
	var b bucket[int]
	_, first1 := b.markMoved()
	_, first2 := b.markMoved()
	if !first1 {
		t.Fatalf("first markMoved call should win")
	}
	if first2 {
		t.Fatalf("second markMoved call should not win")
	}
}

func TestBucketTransferBucketMigratesValidSlots(t *testing.T) {
	var b bucket[int]
	for i := 0; i < 3; i++ {
		m := b.snapshot()
		b.reserve(&m, byte(i), i)
		b.setSlot(i, i*10)
		b.setValidAndUnpark(m, byte(i), i, newParkTable())
	}

	successor := newTable[int](minBuckets)
	hashOf := func(v int) uint64 { return uint64(v) }
	contribution := b.transferBucket(successor, hashOf, newParkTable())
	if contribution != 1 {
		t.Fatalf("got contribution %d, want 1 (no in-flight locks)", contribution)
	}

	for i := 0; i < 3; i++ {
		v, found, definitive := successor.get(uint64(i*10), func(x int) bool { return x == i*10 })
		if !definitive || !found || v != i*10 {
			t.Fatalf("value %d not migrated: found=%v definitive=%v v=%v", i*10, found, definitive, v)
		}
	}

	// A second transferBucket call on the same (already-moved) bucket is a no-op.
	if got := b.transferBucket(successor, hashOf, newParkTable()); got != 0 {
		t.Fatalf("got %d, want 0 for already-moved bucket", got)
	}
}
