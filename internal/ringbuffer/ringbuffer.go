// Package ringbuffer implements the fixed-capacity, overwrite-oldest
// time-series store shared between the capture worker and query callers.
package ringbuffer

import (
	"sync"

	"github.com/cloudwego/gopkg/container/ring"
)

// MaxCapacity bounds how large a single buffer may be.
const MaxCapacity = 36_000_000 // ~3.6e7 samples

type entry[T any] struct {
	ts  float64
	val T
}

// RingBuffer is a thread-safe fixed-capacity circular buffer of
// (timestamp, value) pairs with overwrite-oldest semantics. A single
// mutex serializes Add, Count, Drain, PeekTail and Rate.
type RingBuffer[T any] struct {
	mu       sync.Mutex
	backing  *ring.Ring[entry[T]]
	capacity int
	head     int // index of the oldest valid entry
	count    int // number of valid entries, 0 <= count <= capacity
}

// New creates a RingBuffer with the given fixed capacity. Capacity is
// clamped to [1, MaxCapacity].
func New[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	return &RingBuffer[T]{
		backing:  ring.NewFromSlice(make([]entry[T], capacity)),
		capacity: capacity,
	}
}

// Add appends a (timestamp, value) pair. If the buffer is full, the
// oldest entry is overwritten and the count remains at capacity. Add
// never fails.
func (b *RingBuffer[T]) Add(ts float64, v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.head + b.count) % b.capacity
	item, _ := b.backing.Get(idx)
	*item.Pointer() = entry[T]{ts: ts, val: v}

	if b.count < b.capacity {
		b.count++
	} else {
		// Slot we just wrote was the oldest; advance head past it.
		b.head = (b.head + 1) % b.capacity
	}
}

// Count returns the current number of valid entries.
func (b *RingBuffer[T]) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Drain removes up to max oldest entries and returns them in FIFO
// order. Drain(0) returns no entries and succeeds.
func (b *RingBuffer[T]) Drain(max int) (ts []float64, vals []T, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = clamp(max, b.count)
	ts = make([]float64, n)
	vals = make([]T, n)
	for i := 0; i < n; i++ {
		item, _ := b.backing.Get((b.head + i) % b.capacity)
		e := item.Value()
		ts[i] = e.ts
		vals[i] = e.val
	}
	b.head = (b.head + n) % b.capacity
	b.count -= n
	return ts, vals, n
}

// PeekTail returns up to max most-recent entries without removing
// them: the last min(max, count) entries, oldest-of-that-suffix
// first. PeekTail(0) returns no entries and succeeds.
func (b *RingBuffer[T]) PeekTail(max int) (ts []float64, vals []T, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = clamp(max, b.count)
	start := (b.head + b.count - n + b.capacity) % b.capacity
	ts = make([]float64, n)
	vals = make([]T, n)
	for i := 0; i < n; i++ {
		item, _ := b.backing.Get((start + i) % b.capacity)
		e := item.Value()
		ts[i] = e.ts
		vals[i] = e.val
	}
	return ts, vals, n
}

// Rate returns (count-1) / (newest_ts - oldest_ts) when at least two
// entries are present, else 0. Computed entirely under the lock and
// returned after release, so every path unlocks the same way.
func (b *RingBuffer[T]) Rate() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count < 2 {
		return 0
	}
	oldestItem, _ := b.backing.Get(b.head)
	newestItem, _ := b.backing.Get((b.head + b.count - 1) % b.capacity)
	oldest := oldestItem.Value().ts
	newest := newestItem.Value().ts
	span := newest - oldest
	if span <= 0 {
		return 0
	}
	return float32(float64(b.count-1) / span)
}

func clamp(want, have int) int {
	if want < 0 {
		return 0
	}
	if want > have {
		return have
	}
	return want
}
