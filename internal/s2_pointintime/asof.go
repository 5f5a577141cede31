package s2_pointintime

import (
	"sort"
	"time"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// JoinedKey is a filing matched to the last trading bar known at disclosure
type JoinedKey struct {
	Key           contracts.AggregateKey
	PriceDate     time.Time
	Close         float64
	AdjustedClose float64
}

// AsofJoinPrices matches each filing to the most recent bar of the same ticker
// with bar.Date <= DisclosureDate. Filings without such a bar are dropped.
// Output keeps the input key order.
func AsofJoinPrices(keys []contracts.AggregateKey, bars []contracts.PriceBar) []JoinedKey {
	byTicker := make(map[string][]contracts.PriceBar)
	for _, b := range bars {
		byTicker[b.Ticker] = append(byTicker[b.Ticker], b)
	}
	for t := range byTicker {
		series := byTicker[t]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}

	out := make([]JoinedKey, 0, len(keys))
	for _, k := range keys {
		series := byTicker[k.Ticker]
		// first bar strictly after the disclosure
		i := sort.Search(len(series), func(i int) bool { return series[i].Date.After(k.DisclosureDate) })
		if i == 0 {
			continue
		}
		bar := series[i-1]
		out = append(out, JoinedKey{
			Key:           k,
			PriceDate:     bar.Date,
			Close:         bar.Close,
			AdjustedClose: bar.AdjustedClose,
		})
	}
	return out
}
