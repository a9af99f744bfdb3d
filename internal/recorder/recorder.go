package recorder

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dlu/market-intel/internal/model"
)

// Store persists flushed batches. Every insert is one transaction: either
// the whole batch lands or none of it does.
type Store interface {
	InsertTicks(ctx context.Context, ticks []model.CanonicalTick) error
	InsertDecisions(ctx context.Context, decisions []model.StrategyDecision) error
	InsertIntents(ctx context.Context, intents []model.OrderIntent) error
	InsertExecutions(ctx context.Context, executions []model.OrderExecution) error
}

// Config holds recorder tuning.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
}

// Inputs are the recorder's upstream channels. Each may be nil if the
// pipeline does not produce that record kind.
type Inputs struct {
	Ticks      <-chan model.CanonicalTick
	Decisions  <-chan model.StrategyDecision
	Intents    <-chan model.OrderIntent
	Executions <-chan model.OrderExecution
}

// Stats reports recorder progress.
type Stats struct {
	FlushedTicks      int64
	FlushedDecisions  int64
	FlushedIntents    int64
	FlushedExecutions int64
	Flushes           int64
	DroppedBatches    int64
	LastFlushAt       time.Time
}

// Recorder drains the pipeline's four output streams into durable storage.
// It runs as a single goroutine selecting over the inputs and one timer
// armed to the earliest batch deadline.
type Recorder struct {
	cfg    Config
	store  Store
	in     Inputs
	logger *slog.Logger

	ticks      *batch[model.CanonicalTick]
	decisions  *batch[model.StrategyDecision]
	intents    *batch[model.OrderIntent]
	executions *batch[model.OrderExecution]

	flushedTicks      atomic.Int64
	flushedDecisions  atomic.Int64
	flushedIntents    atomic.Int64
	flushedExecutions atomic.Int64
	flushes           atomic.Int64
	droppedBatches    atomic.Int64
	lastFlushNanos    atomic.Int64
}

// New creates a Recorder over the given inputs.
func New(cfg Config, store Store, in Inputs, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:        cfg,
		store:      store,
		in:         in,
		logger:     logger,
		ticks:      newBatch[model.CanonicalTick]("ticks", cfg.BatchSize),
		decisions:  newBatch[model.StrategyDecision]("strategy_decisions", cfg.BatchSize),
		intents:    newBatch[model.OrderIntent]("order_intents", cfg.BatchSize),
		executions: newBatch[model.OrderExecution]("order_executions", cfg.BatchSize),
	}
}

// Run consumes all inputs until every one is closed and drained, then
// performs the mandatory final flush and returns.
func (r *Recorder) Run(ctx context.Context) {
	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)

	ticks := r.in.Ticks
	decisions := r.in.Decisions
	intents := r.in.Intents
	executions := r.in.Executions

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for ticks != nil || decisions != nil || intents != nil || executions != nil {
		// Arm the timer to the earliest batch deadline, if any batch is
		// accumulating.
		var timerC <-chan time.Time
		if deadline, ok := r.earliestDeadline(); ok {
			timer.Reset(time.Until(deadline))
			timerC = timer.C
		}

		select {
		case tick, ok := <-ticks:
			if !ok {
				ticks = nil
				break
			}
			if r.ticks.add(tick, time.Now()) {
				r.flushTicks(ctx)
			}

		case decision, ok := <-decisions:
			if !ok {
				decisions = nil
				break
			}
			if r.decisions.add(decision, time.Now()) {
				r.flushDecisions(ctx)
			}

		case intent, ok := <-intents:
			if !ok {
				intents = nil
				break
			}
			if r.intents.add(intent, time.Now()) {
				r.flushIntents(ctx)
			}

		case execution, ok := <-executions:
			if !ok {
				executions = nil
				break
			}
			if r.executions.add(execution, time.Now()) {
				r.flushExecutions(ctx)
			}

		case <-timerC:
			timerC = nil
			r.flushExpired(ctx)
		}

		if timerC != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}

	// All inputs closed: flush whatever is buffered before exiting.
	r.flushAll(ctx)
	r.logger.Info("recorder stopped",
		"flushes", r.flushes.Load(),
		"dropped_batches", r.droppedBatches.Load(),
	)
}

// Stats returns current counters.
func (r *Recorder) Stats() Stats {
	var last time.Time
	if n := r.lastFlushNanos.Load(); n != 0 {
		last = time.Unix(0, n)
	}
	return Stats{
		FlushedTicks:      r.flushedTicks.Load(),
		FlushedDecisions:  r.flushedDecisions.Load(),
		FlushedIntents:    r.flushedIntents.Load(),
		FlushedExecutions: r.flushedExecutions.Load(),
		Flushes:           r.flushes.Load(),
		DroppedBatches:    r.droppedBatches.Load(),
		LastFlushAt:       last,
	}
}

// earliestDeadline scans the batches for the soonest time trigger.
func (r *Recorder) earliestDeadline() (time.Time, bool) {
	var earliest time.Time
	found := false

	consider := func(d time.Time, ok bool) {
		if ok && (!found || d.Before(earliest)) {
			earliest = d
			found = true
		}
	}

	consider(r.ticks.deadline(r.cfg.FlushInterval))
	consider(r.decisions.deadline(r.cfg.FlushInterval))
	consider(r.intents.deadline(r.cfg.FlushInterval))
	consider(r.executions.deadline(r.cfg.FlushInterval))

	return earliest, found
}

// flushExpired flushes every batch whose time trigger has passed.
func (r *Recorder) flushExpired(ctx context.Context) {
	now := time.Now()
	expired := func(d time.Time, ok bool) bool {
		return ok && !d.After(now)
	}

	if expired(r.ticks.deadline(r.cfg.FlushInterval)) {
		r.flushTicks(ctx)
	}
	if expired(r.decisions.deadline(r.cfg.FlushInterval)) {
		r.flushDecisions(ctx)
	}
	if expired(r.intents.deadline(r.cfg.FlushInterval)) {
		r.flushIntents(ctx)
	}
	if expired(r.executions.deadline(r.cfg.FlushInterval)) {
		r.flushExecutions(ctx)
	}
}

// flushAll flushes every non-empty batch.
func (r *Recorder) flushAll(ctx context.Context) {
	if r.ticks.len() > 0 {
		r.flushTicks(ctx)
	}
	if r.decisions.len() > 0 {
		r.flushDecisions(ctx)
	}
	if r.intents.len() > 0 {
		r.flushIntents(ctx)
	}
	if r.executions.len() > 0 {
		r.flushExecutions(ctx)
	}
}

func (r *Recorder) flushTicks(ctx context.Context) {
	items := r.ticks.begin()
	defer r.ticks.finish()
	if len(items) == 0 {
		return
	}

	err := r.withRetry(ctx, r.ticks.kind, len(items), func(ctx context.Context) error {
		return r.store.InsertTicks(ctx, items)
	})
	if err != nil {
		ids := make([]int64, len(items))
		from, to := items[0].ObservedAt, items[0].ObservedAt
		for i, t := range items {
			ids[i] = t.InstrumentID
			if t.ObservedAt.Before(from) {
				from = t.ObservedAt
			}
			if t.ObservedAt.After(to) {
				to = t.ObservedAt
			}
		}
		r.dropBatch(r.ticks.kind, len(items), ids, from, to, err)
		return
	}

	r.flushedTicks.Add(int64(len(items)))
	r.recordFlush(r.ticks.kind, len(items))
}

func (r *Recorder) flushDecisions(ctx context.Context) {
	items := r.decisions.begin()
	defer r.decisions.finish()
	if len(items) == 0 {
		return
	}

	err := r.withRetry(ctx, r.decisions.kind, len(items), func(ctx context.Context) error {
		return r.store.InsertDecisions(ctx, items)
	})
	if err != nil {
		ids := make([]int64, len(items))
		from, to := items[0].ObservedAt, items[0].ObservedAt
		for i, d := range items {
			ids[i] = d.InstrumentID
			if d.ObservedAt.Before(from) {
				from = d.ObservedAt
			}
			if d.ObservedAt.After(to) {
				to = d.ObservedAt
			}
		}
		r.dropBatch(r.decisions.kind, len(items), ids, from, to, err)
		return
	}

	r.flushedDecisions.Add(int64(len(items)))
	r.recordFlush(r.decisions.kind, len(items))
}

func (r *Recorder) flushIntents(ctx context.Context) {
	items := r.intents.begin()
	defer r.intents.finish()
	if len(items) == 0 {
		return
	}

	err := r.withRetry(ctx, r.intents.kind, len(items), func(ctx context.Context) error {
		return r.store.InsertIntents(ctx, items)
	})
	if err != nil {
		ids := make([]int64, len(items))
		from, to := items[0].CreatedAt, items[0].CreatedAt
		for i, in := range items {
			ids[i] = in.InstrumentID
			if in.CreatedAt.Before(from) {
				from = in.CreatedAt
			}
			if in.CreatedAt.After(to) {
				to = in.CreatedAt
			}
		}
		r.dropBatch(r.intents.kind, len(items), ids, from, to, err)
		return
	}

	r.flushedIntents.Add(int64(len(items)))
	r.recordFlush(r.intents.kind, len(items))
}

func (r *Recorder) flushExecutions(ctx context.Context) {
	items := r.executions.begin()
	defer r.executions.finish()
	if len(items) == 0 {
		return
	}

	err := r.withRetry(ctx, r.executions.kind, len(items), func(ctx context.Context) error {
		return r.store.InsertExecutions(ctx, items)
	})
	if err != nil {
		ids := make([]int64, len(items))
		from, to := items[0].ExecutedAt, items[0].ExecutedAt
		for i, e := range items {
			ids[i] = e.InstrumentID
			if e.ExecutedAt.Before(from) {
				from = e.ExecutedAt
			}
			if e.ExecutedAt.After(to) {
				to = e.ExecutedAt
			}
		}
		r.dropBatch(r.executions.kind, len(items), ids, from, to, err)
		return
	}

	r.flushedExecutions.Add(int64(len(items)))
	r.recordFlush(r.executions.kind, len(items))
}

// withRetry runs one batch insert, retrying with doubling backoff up to
// MaxRetries additional attempts.
func (r *Recorder) withRetry(ctx context.Context, kind string, count int, insert func(context.Context) error) error {
	wait := r.cfg.RetryBaseWait

	var err error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Warn("retrying batch flush",
				"kind", kind,
				"count", count,
				"attempt", attempt,
				"wait", wait,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > r.cfg.RetryMaxWait {
				wait = r.cfg.RetryMaxWait
			}
		}

		if err = insert(ctx); err == nil {
			return nil
		}
	}
	return err
}

// dropBatch logs an exhausted batch with enough detail to replay it, then
// lets it go so memory stays bounded.
func (r *Recorder) dropBatch(kind string, count int, instrumentIDs []int64, from, to time.Time, err error) {
	r.droppedBatches.Add(1)
	r.logger.Error("dropping batch after exhausted retries",
		"kind", kind,
		"count", count,
		"instrument_ids", uniqueIDs(instrumentIDs),
		"from", from,
		"to", to,
		"error", err,
	)
}

func (r *Recorder) recordFlush(kind string, count int) {
	r.flushes.Add(1)
	r.lastFlushNanos.Store(time.Now().UnixNano())
	r.logger.Debug("flushed batch", "kind", kind, "count", count)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
