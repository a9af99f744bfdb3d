// Package bus implements the Raw Event Bus: a bounded multi-producer,
// multi-consumer queue carrying raw vendor messages from all sessions to the
// Normalizer.
//
// When full, Publish drops the oldest queued event and counts the drop; raw
// ingestion favors availability over completeness, since raw events are cheap
// to lose but a stalled pipeline is not acceptable.
package bus

import (
	"sync"

	"github.com/dlu/market-intel/internal/model"
)

// Bus is a fixed-capacity ring of raw events.
type Bus struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []model.RawEvent
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	closed   bool

	// Stats
	published int64
	consumed  int64
	dropped   int64
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Count     int
	Capacity  int
	Published int64
	Consumed  int64
	Dropped   int64 // Events evicted because the bus was full ("lagged")
}

// New creates a bus with the given capacity.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	b := &Bus{
		buf:      make([]model.RawEvent, capacity),
		capacity: capacity,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish adds an event to the bus. If the bus is full, the oldest queued
// event is evicted and counted as dropped. Returns false if the bus is closed.
func (b *Bus) Publish(ev model.RawEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if b.count == b.capacity {
		// Evict the oldest event
		b.buf[b.head] = model.RawEvent{}
		b.head = (b.head + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.buf[b.tail] = ev
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.published++

	b.cond.Signal()
	return true
}

// Receive removes and returns the oldest event. Blocks until an event is
// available or the bus is closed and drained; the second return is false
// only in the closed-and-drained case.
func (b *Bus) Receive() (model.RawEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}

	if b.count == 0 && b.closed {
		return model.RawEvent{}, false
	}

	ev := b.buf[b.head]
	b.buf[b.head] = model.RawEvent{} // Clear reference for GC
	b.head = (b.head + 1) % b.capacity
	b.count--
	b.consumed++

	return ev, true
}

// Close marks the producer side done. Consumers drain remaining events and
// then receive the closed signal; this propagates shutdown downstream.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of queued events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:     b.count,
		Capacity:  b.capacity,
		Published: b.published,
		Consumed:  b.consumed,
		Dropped:   b.dropped,
	}
}
