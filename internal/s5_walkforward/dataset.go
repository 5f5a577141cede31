package s5_walkforward

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/forecast"
)

// Base feature columns, ahead of the configured indicators
const (
	FeatureVolume   = "volume"
	FeatureIndexRet = "ibov_return"
	FeatureRiskFree = "cdi_return"
)

// Inputs are the tables a backtest reads
type Inputs struct {
	Prices     []contracts.PriceBar
	Index      []contracts.IndexBar
	CDI        []contracts.RateBar
	Indicators map[string]contracts.IndicatorSeries
}

// Dataset is the joined, labeled history of one ticker, oldest first
type Dataset struct {
	Ticker   string
	Features []string
	Dates    []time.Time
	Rows     [][]float64

	// labels exist for rows with a bar Horizon rows ahead
	HasLabel   []bool
	Signals    []bool
	Targets    []float64
	LabelDates []time.Time
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.Dates)
}

// span returns the row range [lo, hi) with from <= date < to
func (d *Dataset) span(from, to time.Time) (int, int) {
	lo := sort.Search(len(d.Dates), func(i int) bool { return !d.Dates[i].Before(from) })
	hi := sort.Search(len(d.Dates), func(i int) bool { return !d.Dates[i].Before(to) })
	return lo, hi
}

// trainingFrame collects labeled rows in [lo, hi) whose label is realized
// before cutoff
func (d *Dataset) trainingFrame(lo, hi int, cutoff time.Time) forecast.TrainingFrame {
	f := forecast.TrainingFrame{Frame: forecast.Frame{Features: d.Features}}
	for i := lo; i < hi; i++ {
		if !d.HasLabel[i] || !d.LabelDates[i].Before(cutoff) {
			continue
		}
		f.Dates = append(f.Dates, d.Dates[i])
		f.Rows = append(f.Rows, d.Rows[i])
		f.Signals = append(f.Signals, d.Signals[i])
		f.Targets = append(f.Targets, d.Targets[i])
	}
	return f
}

// testFrame takes up to lookback feature rows before lo as context, then the
// labeled rows of [lo, hi)
func (d *Dataset) testFrame(lo, hi, lookback, floor int) (forecast.Frame, []bool, []float64) {
	f := forecast.Frame{Features: d.Features}
	start := lo - lookback
	if start < floor {
		start = floor
	}
	for i := start; i < lo; i++ {
		f.Dates = append(f.Dates, d.Dates[i])
		f.Rows = append(f.Rows, d.Rows[i])
	}
	f.Context = len(f.Rows)

	var signals []bool
	var targets []float64
	for i := lo; i < hi; i++ {
		if !d.HasLabel[i] {
			continue
		}
		f.Dates = append(f.Dates, d.Dates[i])
		f.Rows = append(f.Rows, d.Rows[i])
		signals = append(signals, d.Signals[i])
		targets = append(targets, d.Targets[i])
	}
	return f, signals, targets
}

// BuildDatasets joins prices with the index return, the forward filled CDI
// return and every indicator on (date, ticker). Rows missing any column are
// dropped, then labels are set from the adjusted close horizon rows ahead:
// signal = close(t+h) > close(t), target = percent change.
// ⭐ SSOT: S5 feature and label construction
func BuildDatasets(in Inputs, indicators []string, horizon int) []*Dataset {
	indexRet := indexReturns(in.Index)
	cdi := sortedRates(in.CDI)

	lookups := make([]map[contracts.IndicatorKey]float64, len(indicators))
	for i, name := range indicators {
		lookups[i] = in.Indicators[name].Index()
	}

	features := append([]string{FeatureVolume, FeatureIndexRet, FeatureRiskFree}, indicators...)

	byTicker := make(map[string][]contracts.PriceBar)
	for _, b := range in.Prices {
		b.Date = contracts.Day(b.Date)
		byTicker[b.Ticker] = append(byTicker[b.Ticker], b)
	}
	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	out := make([]*Dataset, 0, len(tickers))
	for _, ticker := range tickers {
		bars := byTicker[ticker]
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

		ds := &Dataset{Ticker: ticker, Features: features}
		var closes []float64
		for _, b := range bars {
			if b.AdjustedClose <= 0 || !finite(b.Volume) {
				continue
			}
			ir, ok := indexRet[b.Date]
			if !ok || !finite(ir) {
				continue
			}
			rf, ok := cdiAt(cdi, b.Date)
			if !ok {
				continue
			}

			row := make([]float64, 0, len(features))
			row = append(row, b.Volume, ir, rf)
			complete := true
			for _, lookup := range lookups {
				v, ok := lookup[contracts.IndicatorKey{Date: b.Date, Ticker: ticker}]
				if !ok || !finite(v) {
					complete = false
					break
				}
				row = append(row, v)
			}
			if !complete {
				continue
			}

			ds.Dates = append(ds.Dates, b.Date)
			ds.Rows = append(ds.Rows, row)
			closes = append(closes, b.AdjustedClose)
		}

		n := len(ds.Dates)
		ds.HasLabel = make([]bool, n)
		ds.Signals = make([]bool, n)
		ds.Targets = make([]float64, n)
		ds.LabelDates = make([]time.Time, n)
		for i := 0; i+horizon < n; i++ {
			future := closes[i+horizon]
			ds.HasLabel[i] = true
			ds.Signals[i] = future > closes[i]
			ds.Targets[i] = (future - closes[i]) / closes[i] * 100
			ds.LabelDates[i] = ds.Dates[i+horizon]
		}

		if n > 0 {
			out = append(out, ds)
		}
	}
	return out
}

func indexReturns(index []contracts.IndexBar) map[time.Time]float64 {
	sorted := make([]contracts.IndexBar, len(index))
	copy(sorted, index)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make(map[time.Time]float64, len(sorted))
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Close <= 0 {
			continue
		}
		out[contracts.Day(sorted[i].Date)] = sorted[i].Close/sorted[i-1].Close - 1
	}
	return out
}

func sortedRates(cdi []contracts.RateBar) []contracts.RateBar {
	sorted := make([]contracts.RateBar, len(cdi))
	copy(sorted, cdi)
	for i := range sorted {
		sorted[i].Date = contracts.Day(sorted[i].Date)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return sorted
}

// cdiAt forward fills the CDI return onto d
func cdiAt(sorted []contracts.RateBar, d time.Time) (float64, bool) {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].Date.After(d) })
	if i == 0 {
		return 0, false
	}
	return sorted[i-1].Return, finite(sorted[i-1].Return)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
