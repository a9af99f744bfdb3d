package instrument

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dlu/market-intel/internal/model"
)

// Store persists instrument identities.
type Store interface {
	// Upsert creates the instrument if it does not exist and returns the
	// stored row either way. Concurrent upserts of the same identity must
	// converge on one row.
	Upsert(ctx context.Context, venueTicker, assetClass, venue string) (model.Instrument, error)
}

// cacheKey identifies an instrument within the cache.
type cacheKey struct {
	venueTicker string
	assetClass  string
	venue       string
}

// CacheStats reports resolver cache effectiveness.
type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

// Resolver maps (venue ticker, asset class, venue) to instruments, caching
// results in memory. Everything after the first sighting of a ticker is a
// cache hit; the store is only consulted on misses.
type Resolver struct {
	store  Store
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[cacheKey]model.Instrument

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: logger,
		cache:  make(map[cacheKey]model.Instrument),
	}
}

// Resolve returns the instrument for a venue-native ticker, creating it on
// first sight.
func (r *Resolver) Resolve(ctx context.Context, venueTicker, assetClass, venue string) (model.Instrument, error) {
	key := cacheKey{venueTicker: venueTicker, assetClass: assetClass, venue: venue}

	r.mu.RLock()
	inst, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		r.hits.Add(1)
		return inst, nil
	}

	inst, err := r.store.Upsert(ctx, venueTicker, assetClass, venue)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("resolve %s/%s/%s: %w", venue, assetClass, venueTicker, err)
	}

	r.mu.Lock()
	// Two goroutines can miss on the same key; the upsert makes both see
	// the same row, so last-write-wins here is harmless.
	r.cache[key] = inst
	r.mu.Unlock()
	r.misses.Add(1)

	if inst.NeedsEnrichment {
		r.logger.Debug("instrument created on first sight",
			"instrument_id", inst.ID,
			"venue_ticker", venueTicker,
			"venue", venue,
		)
	}

	return inst, nil
}

// Stats returns current cache statistics.
func (r *Resolver) Stats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return CacheStats{
		Size:   len(r.cache),
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
	}
}
