package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dlu/market-intel/internal/bus"
	"github.com/dlu/market-intel/internal/instrument"
	"github.com/dlu/market-intel/internal/model"
)

// Stats reports normalizer throughput counters.
type Stats struct {
	Normalized  int64
	Skipped     int64
	Unparseable int64
}

// Normalizer consumes raw events from the bus and emits canonical ticks on
// every output channel. One output feeds the router, another the recorder;
// both see the same ticks in the same order. Sends block, so downstream
// backpressure reaches the normalizer (the bus absorbs the resulting lag by
// dropping oldest raw events).
type Normalizer struct {
	in       *bus.Bus
	resolver *instrument.Resolver
	outs     []chan model.CanonicalTick
	logger   *slog.Logger

	normalized  atomic.Int64
	skipped     atomic.Int64
	unparseable atomic.Int64
}

// New creates a Normalizer. The output channels are closed by Run when the
// bus is exhausted.
func New(in *bus.Bus, resolver *instrument.Resolver, outs []chan model.CanonicalTick, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		in:       in,
		resolver: resolver,
		outs:     outs,
		logger:   logger,
	}
}

// Run processes raw events until the bus closes, then closes the outputs so
// shutdown propagates downstream.
func (n *Normalizer) Run(ctx context.Context) {
	n.logger.Info("normalizer started", "outputs", len(n.outs))

	for {
		ev, ok := n.in.Receive()
		if !ok {
			break
		}

		ticks, err := n.normalize(ctx, ev)
		if err != nil {
			n.unparseable.Add(1)
			n.logger.Warn("dropping unparseable event",
				"venue", ev.Venue,
				"session", ev.SessionID,
				"error", err,
			)
			continue
		}
		if len(ticks) == 0 {
			n.skipped.Add(1)
			continue
		}

		for _, tick := range ticks {
			for _, out := range n.outs {
				out <- tick
			}
			n.normalized.Add(1)
		}
	}

	for _, out := range n.outs {
		close(out)
	}
	n.logger.Info("normalizer stopped",
		"normalized", n.normalized.Load(),
		"unparseable", n.unparseable.Load(),
	)
}

// Stats returns current counters.
func (n *Normalizer) Stats() Stats {
	return Stats{
		Normalized:  n.normalized.Load(),
		Skipped:     n.skipped.Load(),
		Unparseable: n.unparseable.Load(),
	}
}

// normalize maps one raw event to zero or more canonical ticks, resolving
// instrument identity for each.
func (n *Normalizer) normalize(ctx context.Context, ev model.RawEvent) ([]model.CanonicalTick, error) {
	var (
		partials   []*partialTick
		assetClass string
		err        error
	)

	switch ev.Venue {
	case "kalshi":
		assetClass = AssetClassEventContract
		var p *partialTick
		p, err = normalizeKalshi(ev)
		if p != nil {
			partials = append(partials, p)
		}
	case "polygon":
		assetClass = AssetClassEquity
		partials, err = normalizePolygon(ev)
	default:
		return nil, fmt.Errorf("unknown venue %q", ev.Venue)
	}
	if err != nil {
		return nil, err
	}

	ticks := make([]model.CanonicalTick, 0, len(partials))
	for _, p := range partials {
		inst, err := n.resolver.Resolve(ctx, p.VenueTicker, assetClass, ev.Venue)
		if err != nil {
			return nil, err
		}

		ticks = append(ticks, model.CanonicalTick{
			InstrumentID: inst.ID,
			Venue:        ev.Venue,
			Kind:         p.Kind,
			Price:        p.Price,
			Size:         p.Size,
			ObservedAt:   p.ObservedAt,
			IngestedAt:   ev.ReceivedAt,
		})
	}

	return ticks, nil
}
