package s4_premium

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// Config holds premium builder options
type Config struct {
	Workers int

	// ProbeTicker supplies the month-end calendar and the start date
	ProbeTicker string

	// VolumeIndicator is the median volume series used by the liquidity floor
	VolumeIndicator string

	// GraceMonths are added to the latest first indicator date of the probe
	GraceMonths int
}

// Inputs are the tables a premium run reads. Indicators must contain the
// volume indicator and every criterion of every strategy.
type Inputs struct {
	Prices     []contracts.PriceBar
	Indicators map[string]contracts.IndicatorSeries
}

// Builder forms quartile portfolios at month-ends and tracks their returns
type Builder struct {
	config Config
	logger *logger.Logger
}

// NewBuilder creates a new premium builder
func NewBuilder(config Config, log *logger.Logger) *Builder {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.GraceMonths == 0 {
		config.GraceMonths = 2
	}
	return &Builder{
		config: config,
		logger: log.WithComponent("s4_premium"),
	}
}

// Build runs every (strategy, floor) pair in parallel. A pair that cannot run
// (missing indicator table) is logged and left out. Output is sorted by
// strategy name, then floor.
// ⭐ SSOT: S4 risk premium construction
func (b *Builder) Build(ctx context.Context, strategies []contracts.Strategy, in Inputs) ([]contracts.PremiumSeries, error) {
	m := newMarket(in.Prices, b.config.ProbeTicker)

	type job struct {
		strategy contracts.Strategy
		floor    float64
	}
	var jobs []job
	for _, s := range strategies {
		floors := s.Floors
		if len(floors) == 0 {
			floors = []float64{0}
		}
		for _, f := range floors {
			jobs = append(jobs, job{strategy: s, floor: f})
		}
	}

	results := make([]*contracts.PremiumSeries, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Workers)

	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			series, err := b.build(gctx, m, j.strategy, j.floor, in.Indicators)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				b.logger.WithFields(map[string]interface{}{
					"strategy": j.strategy.Name,
					"floor":    j.floor,
				}).WithError(err).Warn("Premium strategy failed, skipping")
				return nil
			}
			results[i] = &series
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build premiums: %w", err)
	}

	out := make([]contracts.PremiumSeries, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strategy != out[j].Strategy {
			return out[i].Strategy < out[j].Strategy
		}
		return out[i].Floor < out[j].Floor
	})
	return out, nil
}

// BuildOne runs a single (strategy, floor)
func (b *Builder) BuildOne(ctx context.Context, strategy contracts.Strategy, floor float64, in Inputs) (contracts.PremiumSeries, error) {
	return b.build(ctx, newMarket(in.Prices, b.config.ProbeTicker), strategy, floor, in.Indicators)
}

func (b *Builder) build(ctx context.Context, m *market, strategy contracts.Strategy, floor float64, indicators map[string]contracts.IndicatorSeries) (series contracts.PremiumSeries, err error) {
	defer contracts.RecoverTicker(contracts.StagePremium, strategy.Name, &err)

	series = contracts.PremiumSeries{Strategy: strategy.Name, Floor: floor}
	log := b.logger.WithFields(map[string]interface{}{"strategy": strategy.Name, "floor": floor})

	volume, ok := indicators[b.config.VolumeIndicator]
	if !ok {
		return series, fmt.Errorf("%w: liquidity indicator %s", contracts.ErrMissingSecondaryData, b.config.VolumeIndicator)
	}
	tables := make([]contracts.IndicatorSeries, len(strategy.Criteria))
	for i, c := range strategy.Criteria {
		t, ok := indicators[c.Indicator]
		if !ok {
			return series, fmt.Errorf("%w: indicator %s", contracts.ErrMissingSecondaryData, c.Indicator)
		}
		tables[i] = t
	}

	start, err := b.startDate(tables, log)
	if err != nil {
		return series, err
	}

	var dates []time.Time
	for _, d := range m.monthEnds {
		if !d.Before(start) {
			dates = append(dates, d)
		}
	}
	wanted := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		wanted[d] = true
	}
	volumeAt := indexByDate(volume, wanted)
	valuesAt := make([]map[time.Time]map[string]float64, len(tables))
	for i, t := range tables {
		valuesAt[i] = indexByDate(t, wanted)
	}

	var held [4][]contracts.QuartileMember
	holding := false
	skipped := 0

	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return series, err
		}

		eligible := m.eligible(d, volumeAt[d], floor)

		if holding {
			if row, ok := quartileReturns(d, held, eligible); ok {
				series.Rows = append(series.Rows, row)
			}
		}

		candidates := joinCriteria(eligible, valuesAt, d)
		candidates = DedupeRoots(candidates)
		if len(candidates) < 4 {
			log.WithFields(map[string]interface{}{
				"date":     contracts.FormatDate(d),
				"eligible": len(candidates),
			}).Debug(contracts.ErrEmptyEligibleUniverse.Error())
			holding = false
			skipped++
			continue
		}

		held = Partition(Rank(candidates, strategy.Criteria))
		holding = true
	}

	log.WithFields(map[string]interface{}{
		"rebalances": len(dates),
		"rows":       len(series.Rows),
		"skipped":    skipped,
	}).Info("Premium series built")

	return series, nil
}

// startDate is the latest first non-null date of the probe across the
// criteria, plus the grace period
func (b *Builder) startDate(tables []contracts.IndicatorSeries, log *logger.Logger) (time.Time, error) {
	var latest time.Time
	for _, t := range tables {
		first, ok := firstValid(t, b.config.ProbeTicker)
		if !ok {
			first, ok = firstValid(t, "")
			if !ok {
				return time.Time{}, fmt.Errorf("%w: indicator %s has no values", contracts.ErrMissingSecondaryData, t.Name)
			}
			log.WarnOnce("probe_missing:"+t.Name,
				"Probe ticker has no "+t.Name+" values, using the earliest date of any ticker")
		}
		if first.After(latest) {
			latest = first
		}
	}
	return latest.AddDate(0, b.config.GraceMonths, 0), nil
}

// firstValid returns the earliest non-null date of ticker ("" for any ticker)
func firstValid(s contracts.IndicatorSeries, ticker string) (time.Time, bool) {
	var first time.Time
	found := false
	for _, p := range s.Points {
		if !p.Value.Valid || (ticker != "" && p.Ticker != ticker) {
			continue
		}
		if !found || p.Date.Before(first) {
			first = p.Date
			found = true
		}
	}
	return first, found
}

// quartileReturns averages next/prev - 1 per quartile over the members still
// eligible at d. A quartile without priced members makes the date unusable.
func quartileReturns(d time.Time, held [4][]contracts.QuartileMember, eligible map[string]contracts.PriceBar) (contracts.PremiumRow, bool) {
	row := contracts.PremiumRow{Date: d}
	means := [4]float64{}
	for q, members := range held {
		sum, n := 0.0, 0
		for _, m := range members {
			bar, ok := eligible[m.Ticker]
			if !ok || m.Price <= 0 {
				continue
			}
			r := bar.AdjustedClose/m.Price - 1
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			sum += r
			n++
		}
		if n == 0 {
			return row, false
		}
		means[q] = sum / float64(n)
	}

	row.Q1, row.Q2, row.Q3, row.Q4 = means[0], means[1], means[2], means[3]
	row.Universe = (means[0] + means[1] + means[2] + means[3]) / 4
	return row, true
}

// joinCriteria inner joins the eligible bars with every criterion at d
func joinCriteria(eligible map[string]contracts.PriceBar, valuesAt []map[time.Time]map[string]float64, d time.Time) []Candidate {
	tickers := make([]string, 0, len(eligible))
	for t := range eligible {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var out []Candidate
	for _, t := range tickers {
		values := make([]float64, len(valuesAt))
		complete := true
		for i, byDate := range valuesAt {
			v, ok := byDate[d][t]
			if !ok {
				complete = false
				break
			}
			values[i] = v
		}
		if !complete {
			continue
		}
		bar := eligible[t]
		out = append(out, Candidate{Ticker: t, Price: bar.AdjustedClose, Volume: bar.Volume, Values: values})
	}
	return out
}

// indexByDate keeps the valid, finite values of a series on the wanted dates
func indexByDate(s contracts.IndicatorSeries, wanted map[time.Time]bool) map[time.Time]map[string]float64 {
	out := make(map[time.Time]map[string]float64)
	for _, p := range s.Points {
		d := contracts.Day(p.Date)
		if !wanted[d] || !p.Value.Valid || math.IsNaN(p.Value.Float64) || math.IsInf(p.Value.Float64, 0) {
			continue
		}
		m, ok := out[d]
		if !ok {
			m = make(map[string]float64)
			out[d] = m
		}
		m[p.Ticker] = p.Value.Float64
	}
	return out
}
