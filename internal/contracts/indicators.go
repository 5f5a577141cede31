package contracts

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"
)

// MarketTicker labels market-wide series such as the market premium
const MarketTicker = "MARKET"

// DisclosurePoint is a ratio value at disclosure granularity
type DisclosurePoint struct {
	ReportDate     time.Time  `json:"report_date"`
	DisclosureDate time.Time  `json:"disclosure_date"`
	Ticker         string     `json:"ticker"`
	Value          null.Float `json:"value"`
}

// IndicatorPoint is one (date, ticker, value) row of an indicator series
// ⭐ SSOT: S3 → S4/S5 indicator row
type IndicatorPoint struct {
	Date   time.Time  `json:"date"`
	Ticker string     `json:"ticker"`
	Value  null.Float `json:"value"`
}

// IndicatorSeries is one named indicator table
type IndicatorSeries struct {
	Name   string           `json:"name"`
	Points []IndicatorPoint `json:"points"`
}

// SortPoints orders points by ticker, then date
func SortPoints(points []IndicatorPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Ticker != points[j].Ticker {
			return points[i].Ticker < points[j].Ticker
		}
		return points[i].Date.Before(points[j].Date)
	})
}

// IndicatorKey addresses one indicator row
type IndicatorKey struct {
	Date   time.Time
	Ticker string
}

// Index builds a (date, ticker) lookup keeping only valid values
func (s IndicatorSeries) Index() map[IndicatorKey]float64 {
	idx := make(map[IndicatorKey]float64, len(s.Points))
	for _, p := range s.Points {
		if p.Value.Valid {
			idx[IndicatorKey{Date: Day(p.Date), Ticker: p.Ticker}] = p.Value.Float64
		}
	}
	return idx
}
