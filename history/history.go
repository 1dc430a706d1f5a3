// Package history provides a fixed-capacity, append-only ring of timestamped
// execution records. Once full, the oldest record is silently discarded per
// push. The total-ever-written count is tracked independently of current
// occupancy and never decreases.
package history

import (
	"sync"
	"time"
)

const defaultCapacity = 1000

// Record is one timestamped entry in the ring.
type Record struct {
	// Seq is a strictly increasing sequence index, never reused.
	Seq uint64
	// Timestamp marks when the record was pushed.
	Timestamp time.Time
	// Payload is an arbitrary task-outcome summary.
	Payload any
}

// Buffer is a mutex-guarded circular buffer. Pushes are O(1); all
// operations execute under a brief critical section and never suspend.
type Buffer struct {
	mu    sync.Mutex
	items []Record
	head  int // next write position
	count int
	total uint64
}

// New creates a buffer holding at most capacity records. A capacity below
// one falls back to a default of 1000.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = defaultCapacity
	}
	return &Buffer{items: make([]Record, capacity)}
}

// Push appends a record, dropping the oldest one when the buffer is full.
func (b *Buffer) Push(payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	b.items[b.head] = Record{Seq: b.total, Timestamp: time.Now(), Payload: payload}
	b.head = (b.head + 1) % len(b.items)
	if b.count < len(b.items) {
		b.count++
	}
}

// Recent returns the last n records in push order, newest last. n below one
// or above the current size returns everything.
func (b *Buffer) Recent(n int) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n <= 0 || n > b.count {
		n = b.count
	}

	out := make([]Record, 0, n)
	start := b.head - n
	for i := 0; i < n; i++ {
		idx := (start + i + len(b.items)) % len(b.items)
		out = append(out, b.items[idx])
	}
	return out
}

// All returns the full current contents in push order, oldest first.
func (b *Buffer) All() []Record {
	return b.Recent(0)
}

// Size returns the current occupancy.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns the fixed maximum occupancy.
func (b *Buffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// TotalWritten returns how many records were ever pushed. It never
// decreases, even across Clear.
func (b *Buffer) TotalWritten() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Clear drops the current contents. Sequence numbering and the total
// written count continue from where they were.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
	clear(b.items)
}
