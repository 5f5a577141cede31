package s3_indicators

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

const (
	tradingDaysPerYear  = 252
	tradingDaysPerMonth = 21

	// rolling statistics need at least this share of the window
	minObsRatio = 0.8
)

// TechnicalConfig holds the price based indicator windows
type TechnicalConfig struct {
	Workers        int
	VolumeWindow   int   // rolling median volume, full window required
	MomentumMonths []int // price change over months*21 bars
	VolWindow      int   // annualized volatility of daily returns
	ShortMA        int
	LongMA         int
	RSIPeriod      int
	BetaWindow     int // rolling beta against the index
}

// DefaultTechnicalConfig returns the standard technical indicator set
func DefaultTechnicalConfig() TechnicalConfig {
	return TechnicalConfig{
		Workers:        1,
		VolumeWindow:   21,
		MomentumMonths: []int{1, 6, 12},
		VolWindow:      tradingDaysPerYear,
		ShortMA:        7,
		LongMA:         40,
		RSIPeriod:      14,
		BetaWindow:     tradingDaysPerYear,
	}
}

// MedianVolumeName is the liquidity indicator used by the premium builder
func (c TechnicalConfig) MedianVolumeName() string {
	return fmt.Sprintf("median_volume_%d", c.VolumeWindow)
}

// MomentumName names the momentum series of n months
func MomentumName(months int) string {
	return fmt.Sprintf("momentum_%dm", months)
}

// Names lists every series produced by the config, sorted
func (c TechnicalConfig) Names() []string {
	names := []string{
		c.MedianVolumeName(),
		fmt.Sprintf("vol_%d", c.VolWindow),
		fmt.Sprintf("mm_%d_%d", c.ShortMA, c.LongMA),
		fmt.Sprintf("rsi_%d", c.RSIPeriod),
		fmt.Sprintf("beta_%d", c.BetaWindow),
	}
	for _, m := range c.MomentumMonths {
		names = append(names, MomentumName(m))
	}
	sort.Strings(names)
	return names
}

// Technical computes price based indicators per ticker
type Technical struct {
	config TechnicalConfig
	logger *logger.Logger
}

// NewTechnical creates a technical indicator calculator
func NewTechnical(config TechnicalConfig, log *logger.Logger) *Technical {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Technical{
		config: config,
		logger: log.WithComponent("s3_technical"),
	}
}

// Compute runs every technical indicator over the price history. Tickers
// are independent; a failing ticker is logged and left out.
// ⭐ SSOT: technical indicator computation
func (t *Technical) Compute(ctx context.Context, prices []contracts.PriceBar, index []contracts.IndexBar) ([]contracts.IndicatorSeries, error) {
	byTicker := make(map[string][]contracts.PriceBar)
	for _, b := range prices {
		b.Date = contracts.Day(b.Date)
		byTicker[b.Ticker] = append(byTicker[b.Ticker], b)
	}
	tickers := make([]string, 0, len(byTicker))
	for ticker := range byTicker {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	indexReturns := indexReturnsByDate(index)

	results := make([]map[string][]contracts.IndicatorPoint, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.config.Workers)

	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := t.tickerSafely(ticker, byTicker[ticker], indexReturns)
			if err != nil {
				t.logger.WithField("ticker", ticker).WithError(err).Warn("Technical indicators failed, skipping ticker")
				return nil
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute technical indicators: %w", err)
	}

	names := t.config.Names()
	series := make([]contracts.IndicatorSeries, 0, len(names))
	for _, name := range names {
		s := contracts.IndicatorSeries{Name: name}
		for _, r := range results {
			s.Points = append(s.Points, r[name]...)
		}
		series = append(series, s)
	}

	t.logger.WithFields(map[string]interface{}{
		"tickers":    len(tickers),
		"indicators": len(series),
	}).Info("Technical indicators computed")

	return series, nil
}

func (t *Technical) tickerSafely(ticker string, bars []contracts.PriceBar, indexReturns map[time.Time]float64) (out map[string][]contracts.IndicatorPoint, err error) {
	defer contracts.RecoverTicker(contracts.StageIndicators, ticker, &err)
	return t.ComputeTicker(ticker, bars, indexReturns), nil
}

// ComputeTicker is the pure per-ticker transform
func (t *Technical) ComputeTicker(ticker string, bars []contracts.PriceBar, indexReturns map[time.Time]float64) map[string][]contracts.IndicatorPoint {
	sorted := make([]contracts.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	n := len(sorted)
	dates := make([]time.Time, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range sorted {
		dates[i] = b.Date
		closes[i] = positiveOrNaN(b.AdjustedClose)
		volumes[i] = b.Volume
		if math.IsNaN(volumes[i]) {
			volumes[i] = 0
		}
	}

	returns := nullZeroes(pctChange(closes, 1))
	c := t.config
	out := make(map[string][]contracts.IndicatorPoint)
	emit := func(name string, dates []time.Time, values []float64) {
		for i, v := range values {
			if fv := Finite(v); fv.Valid {
				out[name] = append(out[name], contracts.IndicatorPoint{Date: dates[i], Ticker: ticker, Value: fv})
			}
		}
	}

	emit(c.MedianVolumeName(), dates, rollingMedian(volumes, c.VolumeWindow))

	for _, m := range c.MomentumMonths {
		emit(MomentumName(m), dates, nullZeroes(pctChange(closes, m*tradingDaysPerMonth)))
	}

	vol := rollingStd(returns, c.VolWindow, minObs(c.VolWindow))
	for i := range vol {
		vol[i] *= math.Sqrt(tradingDaysPerYear)
	}
	emit(fmt.Sprintf("vol_%d", c.VolWindow), dates, vol)

	short := rollingMean(closes, c.ShortMA, minObs(c.ShortMA))
	long := rollingMean(closes, c.LongMA, minObs(c.LongMA))
	ratio := make([]float64, n)
	for i := range ratio {
		ratio[i] = short[i] / long[i]
	}
	emit(fmt.Sprintf("mm_%d_%d", c.ShortMA, c.LongMA), dates, ratio)

	emit(fmt.Sprintf("rsi_%d", c.RSIPeriod), dates, rsi(closes, c.RSIPeriod))

	// inner join with the index on date
	var joinedDates []time.Time
	var y, x []float64
	for i, d := range dates {
		if r, ok := indexReturns[d]; ok {
			joinedDates = append(joinedDates, d)
			y = append(y, returns[i])
			x = append(x, r)
		}
	}
	emit(fmt.Sprintf("beta_%d", c.BetaWindow), joinedDates, rollingBeta(y, x, c.BetaWindow, minObs(c.BetaWindow)))

	return out
}

func indexReturnsByDate(index []contracts.IndexBar) map[time.Time]float64 {
	sorted := make([]contracts.IndexBar, len(index))
	copy(sorted, index)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	closes := make([]float64, len(sorted))
	for i, b := range sorted {
		closes[i] = positiveOrNaN(b.Close)
	}
	returns := pctChange(closes, 1)

	out := make(map[time.Time]float64, len(sorted))
	for i, b := range sorted {
		out[contracts.Day(b.Date)] = returns[i]
	}
	return out
}

func minObs(window int) int {
	return int(float64(window) * minObsRatio)
}

func positiveOrNaN(v float64) float64 {
	if v > 0 {
		return v
	}
	return math.NaN()
}

// nullZeroes marks zero and infinite values as missing
func nullZeroes(xs []float64) []float64 {
	for i, v := range xs {
		if v == 0 || math.IsInf(v, 0) {
			xs[i] = math.NaN()
		}
	}
	return xs
}

func pctChange(xs []float64, periods int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i < periods || periods < 1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[i]/xs[i-periods] - 1
	}
	return out
}

// window returns the non-missing values of xs[i-w+1 .. i]
func window(xs []float64, i, w int) []float64 {
	start := i - w + 1
	if start < 0 {
		start = 0
	}
	vals := make([]float64, 0, w)
	for _, v := range xs[start : i+1] {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

func rollingMedian(xs []float64, w int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		vals := window(xs, i, w)
		if i < w-1 || len(vals) < w {
			out[i] = math.NaN()
			continue
		}
		sort.Float64s(vals)
		if w%2 == 1 {
			out[i] = vals[w/2]
		} else {
			out[i] = (vals[w/2-1] + vals[w/2]) / 2
		}
	}
	return out
}

func rollingMean(xs []float64, w, minObs int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		vals := window(xs, i, w)
		if len(vals) < minObs || len(vals) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = mean(vals)
	}
	return out
}

// rollingStd is the sample standard deviation
func rollingStd(xs []float64, w, minObs int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		vals := window(xs, i, w)
		if len(vals) < minObs || len(vals) < 2 {
			out[i] = math.NaN()
			continue
		}
		m := mean(vals)
		ss := 0.0
		for _, v := range vals {
			ss += (v - m) * (v - m)
		}
		out[i] = math.Sqrt(ss / float64(len(vals)-1))
	}
	return out
}

// rsi uses simple moving averages of gains and losses over period bars
func rsi(closes []float64, period int) []float64 {
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			gains[i], losses[i] = math.NaN(), math.NaN()
			continue
		}
		delta := closes[i] - closes[i-1]
		switch {
		case math.IsNaN(delta):
			gains[i], losses[i] = math.NaN(), math.NaN()
		case delta > 0:
			gains[i] = delta
		default:
			losses[i] = -delta
		}
	}

	avgGain := rollingMean(gains, period, period)
	avgLoss := rollingMean(losses, period, period)

	out := make([]float64, len(closes))
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l) || (g == 0 && l == 0):
			out[i] = math.NaN()
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// rollingBeta is the OLS slope of y on x over the window, using rows where
// both are present
func rollingBeta(y, x []float64, w, minObs int) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		start := i - w + 1
		if start < 0 {
			start = 0
		}
		var sx, sy, n float64
		for j := start; j <= i; j++ {
			if math.IsNaN(x[j]) || math.IsNaN(y[j]) {
				continue
			}
			sx += x[j]
			sy += y[j]
			n++
		}
		if int(n) < minObs || n < 2 {
			out[i] = math.NaN()
			continue
		}
		mx, my := sx/n, sy/n
		var cov, variance float64
		for j := start; j <= i; j++ {
			if math.IsNaN(x[j]) || math.IsNaN(y[j]) {
				continue
			}
			cov += (x[j] - mx) * (y[j] - my)
			variance += (x[j] - mx) * (x[j] - mx)
		}
		if variance == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cov / variance
	}
	return out
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
