package interntab

import "testing"

func TestMetaWordValidBitRoundTrip(t *testing.T) {
	var m metaWord
	if m.testValid(3) {
		t.Fatalf("fresh word should have no valid bits")
	}
	m = m.withValid(0xAB, 3)
	if !m.testValid(3) {
		t.Fatalf("expected slot 3 valid")
	}
	if m.lane(3) != 0xAB {
		t.Fatalf("got lane %#x, want 0xAB", m.lane(3))
	}
	for i := 0; i < slotsPerBucket; i++ {
		if i == 3 {
			continue
		}
		if m.testValid(i) {
			t.Fatalf("slot %d should not be valid", i)
		}
	}
}

func TestMetaWordBucketFull(t *testing.T) {
	var m metaWord
	for i := 0; i < slotsPerBucket; i++ {
		if m.bucketFull() {
			t.Fatalf("should not be full with %d slots set", i)
		}
		m = m.withValid(byte(i), i)
	}
	if !m.bucketFull() {
		t.Fatalf("expected full after setting all slots")
	}
}

func TestMetaWordBucketMoved(t *testing.T) {
	var m metaWord
	if m.bucketMoved() {
		t.Fatalf("fresh word should not be moved")
	}
	moved := metaWord(uint64(m) | movedBit)
	if !moved.bucketMoved() {
		t.Fatalf("expected moved")
	}
	// Moved bit must not alias into the valid bits or lanes.
	if moved.validBits() != 0 {
		t.Fatalf("moved bit leaked into valid bits: %#b", moved.validBits())
	}
}

func TestMetaWordWithLockedThenWithValid(t *testing.T) {
	var m metaWord
	locked := m.withLocked(0x7E, 2)
	if locked.testValid(2) {
		t.Fatalf("locked slot must not be valid")
	}
	if !locked.testLocked(2) {
		t.Fatalf("expected LOCKED set")
	}
	if locked.testParked(2) {
		t.Fatalf("PARKED should not be set yet")
	}
	if locked.lane(2)&lowH2Mask != 0x7E&lowH2Mask {
		t.Fatalf("low 6 bits of h2 not preserved: got %#x", locked.lane(2)&lowH2Mask)
	}

	parked := locked.withParked(2)
	if !parked.testParked(2) || !parked.testLocked(2) {
		t.Fatalf("expected both LOCKED and PARKED set")
	}

	published := parked.withValid(0x7E, 2)
	if !published.testValid(2) {
		t.Fatalf("expected slot valid after publish")
	}
	if published.lane(2) != 0x7E {
		t.Fatalf("got lane %#x, want full H2 0x7E", published.lane(2))
	}
}

func TestMetaWordNotValidIndexes(t *testing.T) {
	var m metaWord
	m = m.withValid(1, 0)
	m = m.withValid(2, 4)
	it := m.notValidIndexes()
	var got []int
	for {
		idx, ok := it.next()
		if !ok {
			break
		}
		got = append(got, idx)
	}
	want := []int{1, 2, 3, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMetaWordCountLockedSlots(t *testing.T) {
	var m metaWord
	m = m.withLocked(0x01, 0)
	m = m.withLocked(0x02, 1)
	m = m.withValid(0x03, 2)
	if got := m.countLockedSlots(); got != 2 {
		t.Fatalf("got %d locked slots, want 2", got)
	}
}

func TestMetaWordLanesIndependent(t *testing.T) {
	var m metaWord
	m = m.withLocked(0x3F, 0)
	m = m.withLocked(0x01, 1)
	if m.lane(0)&lowH2Mask != 0x3F {
		t.Fatalf("lane 0 clobbered: %#x", m.lane(0))
	}
	if m.lane(1)&lowH2Mask != 0x01 {
		t.Fatalf("lane 1 clobbered: %#x", m.lane(1))
	}
}
