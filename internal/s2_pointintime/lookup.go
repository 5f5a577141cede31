package s2_pointintime

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// Lookup answers point-in-time queries against an expanded series
type Lookup struct {
	byTicker map[string][]contracts.IndicatorPoint
}

// NewLookup indexes an indicator series by ticker
func NewLookup(points []contracts.IndicatorPoint) *Lookup {
	l := &Lookup{byTicker: make(map[string][]contracts.IndicatorPoint)}
	for _, p := range points {
		l.byTicker[p.Ticker] = append(l.byTicker[p.Ticker], p)
	}
	for t := range l.byTicker {
		series := l.byTicker[t]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}
	return l
}

// At returns the value valid on date for ticker. ok is false when the series
// has no row for that exact day.
func (l *Lookup) At(ticker string, date time.Time) (value null.Float, ok bool) {
	series := l.byTicker[ticker]
	date = contracts.Day(date)
	i := sort.Search(len(series), func(i int) bool { return !series[i].Date.Before(date) })
	if i < len(series) && series[i].Date.Equal(date) {
		return series[i].Value, true
	}
	return null.Float{}, false
}

// Tickers returns the indexed tickers, sorted
func (l *Lookup) Tickers() []string {
	out := make([]string, 0, len(l.byTicker))
	for t := range l.byTicker {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ValueAt is a one-shot point-in-time lookup over an expanded series
func ValueAt(series []contracts.IndicatorPoint, ticker string, date time.Time) (null.Float, bool) {
	return NewLookup(series).At(ticker, date)
}
