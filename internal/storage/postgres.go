package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/database"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// PostgresStore keeps the output tables in the output schema. Each save
// replaces the previous content of its table in one transaction.
// The pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(pool *pgxpool.Pool, log *logger.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: log.WithComponent("storage")}
}

// SaveIndicator implements contracts.IndicatorStore
func (s *PostgresStore) SaveIndicator(ctx context.Context, series contracts.IndicatorSeries) error {
	rows := make([][]interface{}, 0, len(series.Points))
	for _, p := range series.Points {
		rows = append(rows, []interface{}{series.Name, p.Date, p.Ticker, optional(p.Value)})
	}

	_, err := database.Replace(ctx, s.pool,
		pgx.Identifier{"output", "indicators"},
		[]string{"name", "trade_date", "ticker", "value"},
		rows, "name = $1", series.Name,
	)
	if err != nil {
		return fmt.Errorf("save indicator %s: %w", series.Name, err)
	}
	return nil
}

type indicatorRow struct {
	TradeDate time.Time  `db:"trade_date"`
	Ticker    string     `db:"ticker"`
	Value     null.Float `db:"value"`
}

// LoadIndicator implements contracts.IndicatorStore
func (s *PostgresStore) LoadIndicator(ctx context.Context, name string) (contracts.IndicatorSeries, error) {
	series := contracts.IndicatorSeries{Name: name}

	var rows []indicatorRow
	err := pgxscan.Select(ctx, s.pool, &rows, `
		SELECT trade_date, ticker, value
		FROM output.indicators
		WHERE name = $1
		ORDER BY ticker, trade_date
	`, name)
	if err != nil {
		return series, fmt.Errorf("load indicator %s: %w", name, err)
	}
	if len(rows) == 0 {
		return series, fmt.Errorf("load indicator %s: %w", name, ErrNotFound)
	}

	series.Points = make([]contracts.IndicatorPoint, 0, len(rows))
	for _, r := range rows {
		series.Points = append(series.Points, contracts.IndicatorPoint{
			Date:   contracts.Day(r.TradeDate),
			Ticker: r.Ticker,
			Value:  r.Value,
		})
	}
	return series, nil
}

// ListIndicators implements contracts.IndicatorStore
func (s *PostgresStore) ListIndicators(ctx context.Context) ([]string, error) {
	var names []string
	if err := pgxscan.Select(ctx, s.pool, &names, `SELECT DISTINCT name FROM output.indicators ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	return names, nil
}

// SavePremium implements contracts.PremiumStore
func (s *PostgresStore) SavePremium(ctx context.Context, series contracts.PremiumSeries) error {
	rows := make([][]interface{}, 0, len(series.Rows))
	for _, r := range series.Rows {
		rows = append(rows, []interface{}{series.Strategy, series.Floor, r.Date, r.Q1, r.Q2, r.Q3, r.Q4, r.Universe})
	}

	_, err := database.Replace(ctx, s.pool,
		pgx.Identifier{"output", "premiums"},
		[]string{"strategy", "liquidity_floor", "trade_date", "quartile_1", "quartile_2", "quartile_3", "quartile_4", "universe"},
		rows, "strategy = $1 AND liquidity_floor = $2", series.Strategy, series.Floor,
	)
	if err != nil {
		return fmt.Errorf("save premium %s: %w", series.Strategy, err)
	}
	return nil
}

type premiumRow struct {
	TradeDate time.Time `db:"trade_date"`
	Q1        float64   `db:"quartile_1"`
	Q2        float64   `db:"quartile_2"`
	Q3        float64   `db:"quartile_3"`
	Q4        float64   `db:"quartile_4"`
	Universe  float64   `db:"universe"`
}

// LoadPremium implements contracts.PremiumStore
func (s *PostgresStore) LoadPremium(ctx context.Context, strategy string, floor float64) (contracts.PremiumSeries, error) {
	series := contracts.PremiumSeries{Strategy: strategy, Floor: floor}

	var rows []premiumRow
	err := pgxscan.Select(ctx, s.pool, &rows, `
		SELECT trade_date, quartile_1, quartile_2, quartile_3, quartile_4, universe
		FROM output.premiums
		WHERE strategy = $1 AND liquidity_floor = $2
		ORDER BY trade_date
	`, strategy, floor)
	if err != nil {
		return series, fmt.Errorf("load premium %s: %w", strategy, err)
	}
	if len(rows) == 0 {
		return series, fmt.Errorf("load premium %s: %w", strategy, ErrNotFound)
	}

	for _, r := range rows {
		series.Rows = append(series.Rows, contracts.PremiumRow{
			Date: contracts.Day(r.TradeDate), Q1: r.Q1, Q2: r.Q2, Q3: r.Q3, Q4: r.Q4, Universe: r.Universe,
		})
	}
	return series, nil
}

// SaveReport implements contracts.ReportStore
func (s *PostgresStore) SaveReport(ctx context.Context, report contracts.BacktestReport) error {
	rows := make([][]interface{}, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []interface{}{
			report.RunID, r.Ticker, r.TestStart, r.TestEnd,
			r.TrainAccuracy, r.Accuracy, optional(r.MAE), optional(r.RMSE), r.Samples,
		})
	}

	err := database.WithTx(ctx, s.pool, "save backtest run", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO output.backtest_runs (run_id, model, created_at, failed_tickers)
			VALUES ($1, $2, $3, $4)
		`, report.RunID, report.Model, report.CreatedAt, report.Failed); err != nil {
			return err
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"output", "backtest_rows"},
			[]string{"run_id", "ticker", "test_window_start", "test_window_end", "train_accuracy", "classification_accuracy", "mae", "rmse", "samples"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.RunID, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id": report.RunID,
		"rows":   len(report.Rows),
	}).Debug("Backtest report saved")
	return nil
}

// Close implements contracts.Store. Every save commits on return, so there
// is nothing to flush.
func (s *PostgresStore) Close() error {
	return nil
}
