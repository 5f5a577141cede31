package quality

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// Repository handles data quality snapshot persistence
// ⭐ SSOT: S0 quality snapshot storage
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSnapshot saves a data quality snapshot of one run
func (r *Repository) SaveSnapshot(ctx context.Context, runID string, snapshot *contracts.DataQualitySnapshot) error {
	coverage, err := json.Marshal(snapshot.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}
	warnings, err := json.Marshal(snapshot.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	query := `
		INSERT INTO audit.data_quality_snapshots (
			run_id, snapshot_date, quality_score, total_tickers, valid_tickers,
			coverage, warnings, passed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			snapshot_date = EXCLUDED.snapshot_date,
			quality_score = EXCLUDED.quality_score,
			total_tickers = EXCLUDED.total_tickers,
			valid_tickers = EXCLUDED.valid_tickers,
			coverage = EXCLUDED.coverage,
			warnings = EXCLUDED.warnings,
			passed = EXCLUDED.passed,
			updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query,
		runID,
		snapshot.Date,
		snapshot.QualityScore,
		snapshot.TotalTickers,
		snapshot.ValidTickers,
		coverage,
		warnings,
		snapshot.Passed,
	)
	if err != nil {
		return fmt.Errorf("save quality snapshot: %w", err)
	}

	return nil
}

// GetLatest retrieves the most recent quality snapshot
func (r *Repository) GetLatest(ctx context.Context) (*contracts.DataQualitySnapshot, error) {
	query := `
		SELECT snapshot_date, quality_score, total_tickers, valid_tickers,
		       coverage, warnings, passed
		FROM audit.data_quality_snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`

	snapshot := &contracts.DataQualitySnapshot{}
	var coverage, warnings []byte

	err := r.pool.QueryRow(ctx, query).Scan(
		&snapshot.Date,
		&snapshot.QualityScore,
		&snapshot.TotalTickers,
		&snapshot.ValidTickers,
		&coverage,
		&warnings,
		&snapshot.Passed,
	)
	if err != nil {
		return nil, fmt.Errorf("get latest quality snapshot: %w", err)
	}

	if err := json.Unmarshal(coverage, &snapshot.Coverage); err != nil {
		return nil, fmt.Errorf("unmarshal coverage: %w", err)
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &snapshot.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}

	return snapshot, nil
}
