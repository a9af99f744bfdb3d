package engine

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dlu/market-intel/internal/model"
)

// Shard processes one router partition. It owns the state of every
// instrument hashed to it.
type Shard struct {
	id       int
	in       <-chan model.CanonicalTick
	out      chan<- model.StrategyDecision
	strategy Strategy
	logger   *slog.Logger

	instruments map[int64]*InstrumentState

	evaluated atomic.Int64
	signalled atomic.Int64
}

// run evaluates ticks until the input closes.
func (s *Shard) run() error {
	s.logger.Info("engine shard started", "shard", s.id)

	for tick := range s.in {
		state, ok := s.instruments[tick.InstrumentID]
		if !ok {
			state = NewInstrumentState(tick.InstrumentID)
			s.instruments[tick.InstrumentID] = state
		}

		state.Update(tick)
		s.evaluated.Add(1)

		if decision := s.strategy.Evaluate(tick, state); decision != nil {
			s.out <- *decision
			s.signalled.Add(1)
		}
	}

	s.logger.Info("engine shard stopped",
		"shard", s.id,
		"evaluated", s.evaluated.Load(),
		"decisions", s.signalled.Load(),
	)
	return nil
}

// GroupStats reports aggregate engine counters.
type GroupStats struct {
	Shards    int
	Evaluated int64
	Decisions int64
}

// Group runs one shard per router partition and merges their decisions onto
// a single output channel.
type Group struct {
	shards []*Shard
	out    chan model.StrategyDecision
	logger *slog.Logger
}

// NewGroup creates a shard per input channel, all running the same strategy.
func NewGroup(inputs []<-chan model.CanonicalTick, strategy Strategy, outBuffer int, logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}

	out := make(chan model.StrategyDecision, outBuffer)
	shards := make([]*Shard, len(inputs))
	for i, in := range inputs {
		shards[i] = &Shard{
			id:          i,
			in:          in,
			out:         out,
			strategy:    strategy,
			logger:      logger,
			instruments: make(map[int64]*InstrumentState),
		}
	}

	return &Group{shards: shards, out: out, logger: logger}
}

// Decisions returns the merged decision stream. Closed by Run once every
// shard has drained its input.
func (g *Group) Decisions() <-chan model.StrategyDecision {
	return g.out
}

// Run blocks until every shard's input channel is closed and drained, then
// closes the decision stream.
func (g *Group) Run() error {
	var eg errgroup.Group
	for _, shard := range g.shards {
		eg.Go(shard.run)
	}

	err := eg.Wait()
	close(g.out)
	return err
}

// Stats returns aggregate counters across shards.
func (g *Group) Stats() GroupStats {
	stats := GroupStats{Shards: len(g.shards)}
	for _, shard := range g.shards {
		stats.Evaluated += shard.evaluated.Load()
		stats.Decisions += shard.signalled.Load()
	}
	return stats
}
