package recorder

import "time"

// batchState makes the accumulate/flush lifecycle explicit, so a
// size-triggered flush and a concurrent timer fire cannot race: the timer
// sees a flushing batch as having no deadline.
type batchState int

const (
	batchEmpty batchState = iota
	batchAccumulating
	batchFlushing
)

// batch accumulates one record kind. All access is from the recorder's
// single goroutine.
type batch[T any] struct {
	kind  string
	limit int

	state   batchState
	items   []T
	firstAt time.Time // Arrival of the first unflushed record
}

func newBatch[T any](kind string, limit int) *batch[T] {
	return &batch[T]{
		kind:  kind,
		limit: limit,
		items: make([]T, 0, limit),
	}
}

// add appends a record and reports whether the size trigger fired.
func (b *batch[T]) add(item T, now time.Time) bool {
	if b.state == batchEmpty {
		b.state = batchAccumulating
		b.firstAt = now
	}
	b.items = append(b.items, item)
	return len(b.items) >= b.limit
}

// deadline returns the time trigger for the batch: flush interval measured
// from the first unflushed record. No deadline while empty or flushing.
func (b *batch[T]) deadline(interval time.Duration) (time.Time, bool) {
	if b.state != batchAccumulating {
		return time.Time{}, false
	}
	return b.firstAt.Add(interval), true
}

// begin takes ownership of the accumulated records for a flush.
func (b *batch[T]) begin() []T {
	b.state = batchFlushing
	items := b.items
	b.items = make([]T, 0, b.limit)
	return items
}

// finish returns the batch to empty after a flush completes, successfully
// or not.
func (b *batch[T]) finish() {
	b.state = batchEmpty
}

func (b *batch[T]) len() int {
	return len(b.items)
}
