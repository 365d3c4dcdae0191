package audit

import "sync"

// DefaultRingSize is the default capacity of the decision ring.
const DefaultRingSize = 50

// Ring is a bounded FIFO of the most recent decision records. Append is O(1)
// and evicts the oldest record on overflow. Safe for concurrent appenders and
// snapshot readers. No persistence.
type Ring struct {
	mu   sync.Mutex
	buf  []DecisionRecord
	next int // index of the next write
	full bool
}

// NewRing creates a ring with the given capacity (DefaultRingSize if <= 0).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &Ring{buf: make([]DecisionRecord, capacity)}
}

// Capacity returns the fixed ring capacity.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Len returns the number of records currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Append stores a record, evicting the oldest when the ring is full.
func (r *Ring) Append(rec DecisionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = rec
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Snapshot returns up to limit records, newest first. A non-positive or
// over-capacity limit returns everything held.
func (r *Ring) Snapshot(limit int) []DecisionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.buf)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	if limit == 0 {
		return nil
	}

	out := make([]DecisionRecord, limit)
	for i := 0; i < limit; i++ {
		// next-1 is the newest record; walk backwards, wrapping.
		idx := (r.next - 1 - i + len(r.buf)) % len(r.buf)
		out[i] = r.buf[idx]
	}
	return out
}
