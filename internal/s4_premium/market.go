package s4_premium

import (
	"sort"
	"time"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// market is the read-only price view shared by every strategy of a run
type market struct {
	monthEnds []time.Time
	bars      map[time.Time]map[string]contracts.PriceBar
}

func newMarket(prices []contracts.PriceBar, probe string) *market {
	m := &market{bars: make(map[time.Time]map[string]contracts.PriceBar)}

	var probeDates []time.Time
	for _, b := range prices {
		b.Date = contracts.Day(b.Date)
		byTicker, ok := m.bars[b.Date]
		if !ok {
			byTicker = make(map[string]contracts.PriceBar)
			m.bars[b.Date] = byTicker
		}
		byTicker[b.Ticker] = b
		if b.Ticker == probe {
			probeDates = append(probeDates, b.Date)
		}
	}

	sort.Slice(probeDates, func(i, j int) bool { return probeDates[i].Before(probeDates[j]) })
	m.monthEnds = contracts.MonthEnds(probeDates)
	return m
}

// eligible returns the bars at d whose median volume is above floor
func (m *market) eligible(d time.Time, volume map[string]float64, floor float64) map[string]contracts.PriceBar {
	out := make(map[string]contracts.PriceBar)
	for ticker, bar := range m.bars[d] {
		v, ok := volume[ticker]
		if !ok || v <= floor {
			continue
		}
		if bar.AdjustedClose <= 0 {
			continue
		}
		out[ticker] = bar
	}
	return out
}
