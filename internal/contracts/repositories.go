package contracts

import (
	"context"
)

// ⭐ SSOT: storage contracts are defined here only

// FactSource supplies raw statement facts
type FactSource interface {
	LoadFacts(ctx context.Context) ([]StatementFact, error)
}

// MarketSource supplies price, index and risk-free inputs
type MarketSource interface {
	LoadPrices(ctx context.Context) ([]PriceBar, error)
	LoadIndex(ctx context.Context) ([]IndexBar, error)
	LoadCDI(ctx context.Context) ([]RateBar, error)
}

// Source is the full upstream input of a run
type Source interface {
	FactSource
	MarketSource
	Close() error
}

// IndicatorStore persists and serves the indicator library
type IndicatorStore interface {
	SaveIndicator(ctx context.Context, series IndicatorSeries) error
	LoadIndicator(ctx context.Context, name string) (IndicatorSeries, error)
	ListIndicators(ctx context.Context) ([]string, error)
}

// PremiumStore persists and serves premium tables
type PremiumStore interface {
	SavePremium(ctx context.Context, series PremiumSeries) error
	LoadPremium(ctx context.Context, strategy string, floor float64) (PremiumSeries, error)
}

// ReportStore persists backtest reports
type ReportStore interface {
	SaveReport(ctx context.Context, report BacktestReport) error
}

// Store is a scoped output handle. Close flushes pending writes and must be
// called on every exit path.
type Store interface {
	IndicatorStore
	PremiumStore
	ReportStore
	Close() error
}
