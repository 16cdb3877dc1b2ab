package interntab

import "testing"

func TestBitMaskIterOrder(t *testing.T) {
	it := newBitMaskIter(0b0101_1010)
	var got []int
	for {
		idx, ok := it.next()
		if !ok {
			break
		}
		got = append(got, idx)
	}
	want := []int{1, 3, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBitMaskIterEmpty(t *testing.T) {
	it := newBitMaskIter(0)
	if _, ok := it.next(); ok {
		t.Fatalf("expected no bits")
	}
}

func TestBitMaskIterMasksHighBit(t *testing.T) {
	// bit 7 never corresponds to a slot; newBitMaskIter must mask it off.
	it := newBitMaskIter(0xFF)
	var count int
	for {
		_, ok := it.next()
		if !ok {
			break
		}
		count++
	}
	if count != slotsPerBucket {
		t.Fatalf("got %d set bits, want %d", count, slotsPerBucket)
	}
}

func TestBitMaskIterNonRestartable(t *testing.T) {
	it := newBitMaskIter(0b1)
	if _, ok := it.next(); !ok {
		t.Fatalf("expected one bit")
	}
	if _, ok := it.next(); ok {
		t.Fatalf("iterator should be exhausted")
	}
}
