package s0_data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/config"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// NewSource returns the input source selected by INPUT_SOURCE.
// pool may be nil for the CSV source.
// ⭐ SSOT: input source selection
func NewSource(cfg config.PipelineConfig, pool *pgxpool.Pool, log *logger.Logger) (contracts.Source, error) {
	switch cfg.InputSource {
	case config.SourceCSV:
		return NewCSVSource(cfg.InputDir(), log), nil
	case config.SourcePostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres source requires a database pool")
		}
		return NewPostgresSource(pool), nil
	default:
		return nil, fmt.Errorf("unknown input source %q", cfg.InputSource)
	}
}

// LoadMarket reads prices, index and CDI concurrently
func LoadMarket(ctx context.Context, src contracts.MarketSource) (contracts.MarketData, error) {
	var md contracts.MarketData

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bars, err := src.LoadPrices(gctx)
		if err != nil {
			return fmt.Errorf("load prices: %w", err)
		}
		md.Prices = bars
		return nil
	})
	g.Go(func() error {
		bars, err := src.LoadIndex(gctx)
		if err != nil {
			return fmt.Errorf("load index: %w", err)
		}
		md.Index = bars
		return nil
	})
	g.Go(func() error {
		bars, err := src.LoadCDI(gctx)
		if err != nil {
			return fmt.Errorf("load cdi: %w", err)
		}
		md.CDI = bars
		return nil
	})

	if err := g.Wait(); err != nil {
		return contracts.MarketData{}, err
	}
	return md, nil
}
