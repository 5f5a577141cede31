package contracts

import "time"

// PriceBar is one daily bar of one ticker
// ⭐ SSOT: S0 price input
type PriceBar struct {
	Date          time.Time `json:"date"`
	Ticker        string    `json:"ticker"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"` // split/dividend adjusted upstream
	Volume        float64   `json:"volume"`
}

// IndexBar is one daily close of the market index (Ibovespa)
type IndexBar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// RateBar is one daily return of the risk-free rate (CDI)
type RateBar struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// MarketData bundles every market-side input of a run
type MarketData struct {
	Prices []PriceBar
	Index  []IndexBar
	CDI    []RateBar
}

// TickerRoot returns the issuer root (first four characters) of a B3 ticker
func TickerRoot(ticker string) string {
	if len(ticker) <= 4 {
		return ticker
	}
	return ticker[:4]
}
