// Package router partitions canonical ticks across engine shards by a
// stable hash of the instrument id. All ticks for one instrument land on
// the same shard in arrival order; there is no ordering guarantee across
// instruments.
package router

import (
	"encoding/binary"
	"hash/fnv"
	"log/slog"
	"sync/atomic"

	"github.com/dlu/market-intel/internal/model"
)

// Router fans ticks out to a fixed set of shard channels. Sends block:
// a slow shard backpressures the router rather than reordering or
// dropping ticks.
type Router struct {
	in     <-chan model.CanonicalTick
	shards []chan model.CanonicalTick
	logger *slog.Logger

	routed atomic.Int64
}

// New creates a Router with shardCount output channels of the given
// buffer size.
func New(in <-chan model.CanonicalTick, shardCount, shardBuffer int, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	shards := make([]chan model.CanonicalTick, shardCount)
	for i := range shards {
		shards[i] = make(chan model.CanonicalTick, shardBuffer)
	}

	return &Router{
		in:     in,
		shards: shards,
		logger: logger,
	}
}

// Shards returns the receive side of every shard channel, indexed by shard.
func (r *Router) Shards() []<-chan model.CanonicalTick {
	out := make([]<-chan model.CanonicalTick, len(r.shards))
	for i, ch := range r.shards {
		out[i] = ch
	}
	return out
}

// Run routes ticks until the input closes, then closes every shard channel
// so the engine shards drain and exit.
func (r *Router) Run() {
	r.logger.Info("router started", "shards", len(r.shards))

	for tick := range r.in {
		r.shards[shardFor(tick.InstrumentID, len(r.shards))] <- tick
		r.routed.Add(1)
	}

	for _, ch := range r.shards {
		close(ch)
	}
	r.logger.Info("router stopped", "routed", r.routed.Load())
}

// Routed returns the number of ticks routed so far.
func (r *Router) Routed() int64 {
	return r.routed.Load()
}

// shardFor maps an instrument id to a shard index with FNV-64a. The hash is
// stable across runs, so an instrument's shard assignment never moves.
func shardFor(instrumentID int64, shardCount int) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(instrumentID))

	h := fnv.New64a()
	h.Write(buf[:])

	return int(h.Sum64() % uint64(shardCount))
}
