package recorder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dlu/market-intel/internal/model"
)

// PGStore writes batches to PostgreSQL. Each insert runs inside one
// transaction so a batch lands atomically.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL-backed recorder store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// InsertTicks appends ticks. Re-delivered ticks (same instrument, kind and
// observation instant) are ignored so a replay after a dropped batch is
// idempotent.
func (s *PGStore) InsertTicks(ctx context.Context, ticks []model.CanonicalTick) error {
	batch := &pgx.Batch{}
	for _, t := range ticks {
		batch.Queue(`
			INSERT INTO ticks (instrument_id, venue, kind, price, size, observed_at, ingested_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING
		`, t.InstrumentID, t.Venue, string(t.Kind), t.Price, t.Size, t.ObservedAt, t.IngestedAt)
	}
	return s.sendInTx(ctx, batch)
}

// InsertDecisions appends strategy decisions.
func (s *PGStore) InsertDecisions(ctx context.Context, decisions []model.StrategyDecision) error {
	batch := &pgx.Batch{}
	for _, d := range decisions {
		batch.Queue(`
			INSERT INTO strategy_decisions (strategy_id, strategy_name, instrument_id, observed_at, action, quantity, limit_price, price, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, d.StrategyID, d.StrategyName, d.InstrumentID, d.ObservedAt, string(d.Action), d.Quantity, d.LimitPrice, d.Price, d.Confidence)
	}
	return s.sendInTx(ctx, batch)
}

// InsertIntents appends order intents.
func (s *PGStore) InsertIntents(ctx context.Context, intents []model.OrderIntent) error {
	batch := &pgx.Batch{}
	for _, in := range intents {
		batch.Queue(`
			INSERT INTO order_intents (id, instrument_id, strategy_id, side, quantity, order_type, limit_price, ref_price, observed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING
		`, in.ID, in.InstrumentID, in.StrategyID, string(in.Side), in.Quantity, string(in.OrderType), in.LimitPrice, in.RefPrice, in.ObservedAt, in.CreatedAt)
	}
	return s.sendInTx(ctx, batch)
}

// InsertExecutions appends order executions.
func (s *PGStore) InsertExecutions(ctx context.Context, executions []model.OrderExecution) error {
	batch := &pgx.Batch{}
	for _, e := range executions {
		batch.Queue(`
			INSERT INTO order_executions (intent_id, instrument_id, venue, executed_at, price, quantity, status, venue_order_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (intent_id) DO NOTHING
		`, e.IntentID, e.InstrumentID, e.Venue, e.ExecutedAt, e.Price, e.Quantity, string(e.Status), e.VenueOrderID)
	}
	return s.sendInTx(ctx, batch)
}

// sendInTx runs a queued batch inside one transaction.
func (s *PGStore) sendInTx(ctx context.Context, batch *pgx.Batch) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("batch close: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
