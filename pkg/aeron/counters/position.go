package counters

import "sync/atomic"

// Position is a cache-line-isolated 64-bit stream-position counter
// readable by all parties (spec.md §3 "Position Counters"). Exactly one
// party writes to any given Position; everyone else only reads it.
type Position struct {
	_     [56]byte // pad to a cache line so independent positions never false-share
	value int64
}

func (p *Position) Get() int64 {
	return atomic.LoadInt64(&p.value)
}

// SetOrdered publishes a new value with release semantics -- the write
// discipline spec.md §5 requires for cross-thread position updates.
func (p *Position) SetOrdered(v int64) {
	atomic.StoreInt64(&p.value, v)
}

// CompareAndSet atomically replaces old with new, for a position that can
// be written from more than one path. ipc.Publication.TryClaim advances
// publisher_position with SetOrdered, not with this.
func (p *Position) CompareAndSet(old, new int64) bool {
	return atomic.CompareAndSwapInt64(&p.value, old, new)
}
