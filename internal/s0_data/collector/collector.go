package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/s0_data"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// RateFetcher downloads risk-free history
type RateFetcher interface {
	FetchCDI(ctx context.Context, from, to time.Time) ([]contracts.RateBar, error)
}

// RateSink persists risk-free history
type RateSink interface {
	SaveCDI(ctx context.Context, bars []contracts.RateBar) error
}

// CSVSink writes cdi.csv into an input directory
type CSVSink struct {
	Dir string
}

// SaveCDI implements RateSink
func (s CSVSink) SaveCDI(ctx context.Context, bars []contracts.RateBar) error {
	return s0_data.WriteCDI(s.Dir, bars)
}

// Collector refreshes the CDI input from the fetcher into the sink
// ⭐ SSOT: input collection orchestration lives here only
type Collector struct {
	fetcher RateFetcher
	sink    RateSink
	logger  *logger.Logger
}

// NewCollector creates a new Collector instance
func NewCollector(fetcher RateFetcher, sink RateSink, log *logger.Logger) *Collector {
	return &Collector{
		fetcher: fetcher,
		sink:    sink,
		logger:  log.WithField("module", "collector"),
	}
}

// FetchResult summarizes one collection run
type FetchResult struct {
	From     time.Time
	To       time.Time
	Rows     int
	Duration time.Duration
}

// CollectCDI fetches [from, to] and replaces the stored history with it
func (c *Collector) CollectCDI(ctx context.Context, from, to time.Time) (FetchResult, error) {
	start := time.Now()
	result := FetchResult{From: from, To: to}

	bars, err := c.fetcher.FetchCDI(ctx, from, to)
	if err != nil {
		return result, fmt.Errorf("fetch cdi: %w", err)
	}
	if len(bars) == 0 {
		return result, fmt.Errorf("fetch cdi: no rows between %s and %s",
			contracts.FormatDate(from), contracts.FormatDate(to))
	}

	if err := c.sink.SaveCDI(ctx, bars); err != nil {
		return result, fmt.Errorf("save cdi: %w", err)
	}

	result.Rows = len(bars)
	result.Duration = time.Since(start)

	c.logger.WithFields(map[string]interface{}{
		"rows":     result.Rows,
		"duration": result.Duration.String(),
	}).Info("CDI history collected")

	return result, nil
}
