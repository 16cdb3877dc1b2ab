package interntab

import (
	"sync"

	"go.uber.org/atomic"
)

// Engine is the public façade: it holds the current head of the table
// chain and drives the probe/insert/migrate retry loop.
//
// Go has no implicit Hash trait, so Engine is constructed with an explicit
// hashOf function; this plays the role of the hash-builder the reference
// design's façade holds, and is needed internally even for callers that
// only ever use the explicit-hash Intern/GetFromHash entry points, because
// migration must re-hash already-stored values to place them in a
// successor table.
type Engine[T any] struct {
	hashOf func(T) uint64

	head     atomic.Pointer[table[T]]
	initOnce sync.Once
}

// New creates an empty engine. The first Intern call allocates the
// minimum-sized table.
func New[T any](hashOf func(T) uint64) *Engine[T] {
	return WithCapacity[T](0, hashOf)
}

// WithCapacity creates an engine whose initial table is sized from the
// capacity hint n (see capacityToBuckets). The hint does not guarantee that
// n values fit without resizing: an insert that finds no free slot within
// the table's probe limit still triggers a resize.
func WithCapacity[T any](n int, hashOf func(T) uint64) *Engine[T] {
	e := &Engine[T]{hashOf: hashOf}
	if n > 0 {
		e.head.Store(newTable[T](capacityToBuckets(uint64(n))))
		e.initOnce.Do(func() {})
	}
	return e
}

// ensureHead returns the current head table, lazily allocating the minimum
// table on first use if the engine was constructed with capacity 0.
func (e *Engine[T]) ensureHead() *table[T] {
	e.initOnce.Do(func() {
		if e.head.Load() == nil {
			e.head.Store(newTable[T](minBuckets))
		}
	})
	return e.head.Load()
}

// Intern returns the canonical T such that eq(canonical) holds. make is
// invoked at most once, and only if no such canonical value existed at the
// first observation point and this call won the reservation race for it.
func (e *Engine[T]) Intern(hash uint64, eq func(T) bool, make func() T) T {
	tb := e.ensureHead()
	isCurrent := true
	for {
		outcome, v, ls := tb.lockOrGetSlot(hash, eq)
		switch outcome {
		case outcomeFound:
			return v
		case outcomeLocked:
			value := make()
			completed := tb.finishInsert(hash, value, ls, e.hashOf)
			if completed && isCurrent {
				e.head.Store(tb.nextMovedPtr())
			}
			return value
		case outcomeResizeNeeded:
			completed := tb.ensureSuccessor(e.hashOf)
			if completed && isCurrent {
				e.head.Store(tb.nextMovedPtr())
			}
			tb = tb.awaitNext()
			isCurrent = false
		case outcomeMoved:
			tb = tb.awaitNext()
			isCurrent = false
		}
	}
}

// GetFromHash is a read-only lookup: it never inserts and never waits.
func (e *Engine[T]) GetFromHash(hash uint64, eq func(T) bool) (T, bool) {
	tb := e.ensureHead()
	for {
		v, found, definitive := tb.get(hash, eq)
		if definitive {
			return v, found
		}
		tb = tb.awaitNext()
	}
}

// InternWith is a convenience form of Intern that takes a caller-owned query
// value directly, building the equality and construction closures for the
// caller. It is a package-level function rather than a method because Go
// does not allow a method to introduce type parameters beyond those of its
// receiver.
func InternWith[T any, Q any](e *Engine[T], hash uint64, query Q, eq func(T, Q) bool, make func(Q) T) T {
	return e.Intern(hash, func(v T) bool { return eq(v, query) }, func() T { return make(query) })
}
