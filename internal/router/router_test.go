package router

import (
	"sync"
	"testing"

	"github.com/dlu/market-intel/internal/model"
)

func TestShardFor_Stable(t *testing.T) {
	for id := int64(1); id <= 100; id++ {
		first := shardFor(id, 4)
		for i := 0; i < 10; i++ {
			if got := shardFor(id, 4); got != first {
				t.Fatalf("shardFor(%d) not stable: %d then %d", id, first, got)
			}
		}
		if first < 0 || first >= 4 {
			t.Fatalf("shardFor(%d) = %d, out of range", id, first)
		}
	}
}

func TestShardFor_Spreads(t *testing.T) {
	const shards = 4
	counts := make([]int, shards)
	for id := int64(1); id <= 1000; id++ {
		counts[shardFor(id, shards)]++
	}
	for i, c := range counts {
		if c == 0 {
			t.Errorf("shard %d received no instruments", i)
		}
	}
}

func TestRouter_PerInstrumentOrder(t *testing.T) {
	in := make(chan model.CanonicalTick, 100)
	r := New(in, 4, 100, nil)

	// Drain all shards, remembering which shard saw each instrument and
	// the per-instrument price sequence.
	type seen struct {
		shard  int
		prices []float64
	}
	byInstrument := make(map[int64]*seen)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, ch := range r.Shards() {
		wg.Add(1)
		go func(shard int, ch <-chan model.CanonicalTick) {
			defer wg.Done()
			for tick := range ch {
				mu.Lock()
				s, ok := byInstrument[tick.InstrumentID]
				if !ok {
					s = &seen{shard: shard}
					byInstrument[tick.InstrumentID] = s
				} else if s.shard != shard {
					t.Errorf("instrument %d seen on shards %d and %d", tick.InstrumentID, s.shard, shard)
				}
				s.prices = append(s.prices, tick.Price)
				mu.Unlock()
			}
		}(i, ch)
	}

	go r.Run()

	// Interleave ticks for 10 instruments, each with an increasing price
	// sequence.
	for round := 0; round < 50; round++ {
		for id := int64(1); id <= 10; id++ {
			in <- model.CanonicalTick{InstrumentID: id, Price: float64(round)}
		}
	}
	close(in)
	wg.Wait()

	if len(byInstrument) != 10 {
		t.Fatalf("saw %d instruments, want 10", len(byInstrument))
	}
	for id, s := range byInstrument {
		if len(s.prices) != 50 {
			t.Errorf("instrument %d: %d ticks, want 50", id, len(s.prices))
		}
		for i := 1; i < len(s.prices); i++ {
			if s.prices[i] <= s.prices[i-1] {
				t.Errorf("instrument %d: tick order violated at %d (%v then %v)", id, i, s.prices[i-1], s.prices[i])
				break
			}
		}
	}

	if r.Routed() != 500 {
		t.Errorf("Routed = %d, want 500", r.Routed())
	}
}

func TestRouter_ClosesShardsOnInputClose(t *testing.T) {
	in := make(chan model.CanonicalTick)
	r := New(in, 2, 10, nil)

	go r.Run()
	close(in)

	for i, ch := range r.Shards() {
		if _, ok := <-ch; ok {
			t.Errorf("shard %d: unexpected tick", i)
		}
	}
}
