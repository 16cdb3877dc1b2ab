package interntab

import "sync"

// parkShardCount is the number of independent lock/wait-list shards in a
// parkTable. Go has no portable futex or parking-lot primitive to reach for,
// so parkTable is built the same way Go's own runtime builds its semaphore
// wait table: a sharded map keyed by address, guarded by per-shard locks,
// with sync.Cond for the actual wait/wake.
const parkShardCount = 256

// parkTable implements address-keyed parking: a thread parks on a
// (word-address, slot-index) key and is woken by a broadcast unpark from
// whichever thread next publishes that slot's value.
type parkTable struct {
	shards [parkShardCount]parkShard
}

type parkShard struct {
	mu   sync.Mutex
	cond map[uint64]*sync.Cond
}

func newParkTable() *parkTable {
	t := &parkTable{}
	for i := range t.shards {
		t.shards[i].cond = make(map[uint64]*sync.Cond)
	}
	return t
}

func (t *parkTable) shardFor(key uint64) *parkShard {
	return &t.shards[key%parkShardCount]
}

// park blocks the calling goroutine, re-checking stillWaiting under the
// shard lock, until stillWaiting reports false. The caller is responsible
// for having already announced PARKED on the metadata lane before calling
// park, so that a concurrent unparkAll cannot be missed between the check
// and the wait.
func (t *parkTable) park(key uint64, stillWaiting func() bool) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	for stillWaiting() {
		cond, ok := s.cond[key]
		if !ok {
			cond = sync.NewCond(&s.mu)
			s.cond[key] = cond
		}
		cond.Wait()
	}
}

// unparkAll wakes every goroutine parked on key, if any, and drops the
// wait-list entry for key (a fresh one is created the next time a thread
// parks on it).
func (t *parkTable) unparkAll(key uint64) {
	s := t.shardFor(key)
	s.mu.Lock()
	cond, ok := s.cond[key]
	if ok {
		delete(s.cond, key)
	}
	s.mu.Unlock()
	if ok {
		cond.Broadcast()
	}
}
