package s0_data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/database"
)

// PostgresSource reads the run inputs from the market schema.
// The pool is owned by the caller.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a new PostgreSQL source
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// LoadFacts implements contracts.FactSource
func (s *PostgresSource) LoadFacts(ctx context.Context) ([]contracts.StatementFact, error) {
	query := `
		SELECT report_date, disclosure_date, ticker, account, value, shares
		FROM market.statement_facts
		ORDER BY ticker, disclosure_date, report_date
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query statement facts: %w", err)
	}

	facts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.StatementFact, error) {
		var f contracts.StatementFact
		err := row.Scan(&f.ReportDate, &f.DisclosureDate, &f.Ticker, &f.Account, &f.Value, &f.Shares)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan statement facts: %w", err)
	}
	return facts, nil
}

// LoadPrices implements contracts.MarketSource
func (s *PostgresSource) LoadPrices(ctx context.Context) ([]contracts.PriceBar, error) {
	query := `
		SELECT trade_date, ticker, open_price, high_price, low_price, close_price,
		       adjusted_close, COALESCE(volume, 0)
		FROM market.daily_prices
		ORDER BY ticker, trade_date
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query daily prices: %w", err)
	}

	bars, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.PriceBar, error) {
		var b contracts.PriceBar
		err := row.Scan(&b.Date, &b.Ticker, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjustedClose, &b.Volume)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan daily prices: %w", err)
	}
	return bars, nil
}

// LoadIndex implements contracts.MarketSource
func (s *PostgresSource) LoadIndex(ctx context.Context) ([]contracts.IndexBar, error) {
	query := `
		SELECT trade_date, close_price
		FROM market.index_prices
		WHERE index_code = 'IBOV'
		ORDER BY trade_date
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query index prices: %w", err)
	}

	bars, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.IndexBar, error) {
		var b contracts.IndexBar
		err := row.Scan(&b.Date, &b.Close)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan index prices: %w", err)
	}
	return bars, nil
}

// LoadCDI implements contracts.MarketSource
func (s *PostgresSource) LoadCDI(ctx context.Context) ([]contracts.RateBar, error) {
	query := `
		SELECT rate_date, daily_return
		FROM market.cdi_rates
		ORDER BY rate_date
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query cdi rates: %w", err)
	}

	bars, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.RateBar, error) {
		var b contracts.RateBar
		err := row.Scan(&b.Date, &b.Return)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan cdi rates: %w", err)
	}
	return bars, nil
}

// SaveCDI upserts CDI rates in one transaction
func (s *PostgresSource) SaveCDI(ctx context.Context, bars []contracts.RateBar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO market.cdi_rates (rate_date, daily_return)
		VALUES ($1, $2)
		ON CONFLICT (rate_date) DO UPDATE SET
			daily_return = EXCLUDED.daily_return
	`

	return database.WithTx(ctx, s.pool, "upsert cdi rates", func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range bars {
			batch.Queue(query, b.Date, b.Return)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Close implements contracts.Source. The pool is closed by its owner.
func (s *PostgresSource) Close() error {
	return nil
}
