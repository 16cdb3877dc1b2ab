// Package interntab is a concurrent, insert-only interner: a hash-indexed
// structure that deduplicates values and hands back a stable handle to the
// single canonical copy of each distinct value.
//
// The hard part is the concurrency core: a per-slot-locked open-addressed
// hash table with byte-granular metadata and a cooperative incremental-growth
// protocol that lets inserts proceed while the table is resizing.
//
// # Basic usage
//
//	hashOf := func(s string) uint64 {
//	    h := fnv.New64a()
//	    h.Write([]byte(s))
//	    return h.Sum64()
//	}
//	e := interntab.New[string](hashOf)
//	canon := e.Intern(hashOf("hello"), func(v string) bool { return v == "hello" }, func() string { return "hello" })
//
// # Concurrency
//
//   - Intern and GetFromHash are safe for concurrent use from any number of
//     goroutines.
//   - Intern blocks in two cases: when it must wait for a peer holding the
//     same slot to finish publishing its value (that wait is unconditional
//     and unbounded), and when it finds the table needs a successor while
//     another goroutine is still running that table's bulk migration.
//   - GetFromHash never blocks and never inserts.
//
// # Error handling
//
// interntab has no recoverable error kind: it is insert-only, so there is
// nothing to roll back. The single documented fatal condition is capacity
// overflow while computing the initial bucket count, which panics rather
// than silently wrapping (see [ErrCapacityOverflow]).
package interntab
