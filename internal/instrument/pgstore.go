package instrument

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dlu/market-intel/internal/model"
)

// PGStore persists instruments to PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL-backed instrument store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// Upsert inserts a minimal instrument row on first sight and returns the
// stored row. The conflict arm only touches updated_at, so two sessions
// racing on the same ticker both get the same id back and an existing
// instrument's enrichment state is never clobbered.
func (s *PGStore) Upsert(ctx context.Context, venueTicker, assetClass, venue string) (model.Instrument, error) {
	const query = `
		INSERT INTO instruments (venue_ticker, display_name, asset_class, venue, status, needs_enrichment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'active', TRUE, NOW(), NOW())
		ON CONFLICT (venue_ticker, asset_class, venue)
		DO UPDATE SET updated_at = NOW()
		RETURNING id, venue_ticker, display_name, asset_class, venue, status, needs_enrichment
	`

	// The venue ticker doubles as the display name until enrichment fills
	// in something human-readable.
	var inst model.Instrument
	err := s.db.QueryRow(ctx, query, venueTicker, venueTicker, assetClass, venue).Scan(
		&inst.ID,
		&inst.VenueTicker,
		&inst.DisplayName,
		&inst.AssetClass,
		&inst.Venue,
		&inst.Status,
		&inst.NeedsEnrichment,
	)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("upsert instrument: %w", err)
	}

	return inst, nil
}
