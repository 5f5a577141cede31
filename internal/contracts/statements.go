package contracts

import (
	"time"

	"github.com/guregu/null/v6"
)

// StatementFact is one raw line item as delivered by the filings collaborator.
// ⭐ SSOT: S0 → S1 statement input
//
// DisclosureDate is the only date that may be aligned with market data.
type StatementFact struct {
	ReportDate     time.Time  `json:"report_date"`
	DisclosureDate time.Time  `json:"disclosure_date"`
	Ticker         string     `json:"ticker"`
	Account        string     `json:"account"`
	Value          null.Float `json:"value"`
	Shares         null.Float `json:"shares"` // outstanding shares at the filing
}

// Key returns the aggregate key of the fact
func (f StatementFact) Key() AggregateKey {
	return AggregateKey{ReportDate: f.ReportDate, DisclosureDate: f.DisclosureDate, Ticker: f.Ticker}
}

// AggregateKey identifies one filing of one ticker
type AggregateKey struct {
	ReportDate     time.Time `json:"report_date"`
	DisclosureDate time.Time `json:"disclosure_date"`
	Ticker         string    `json:"ticker"`
}

// Less orders keys by ticker, disclosure date, report date
func (k AggregateKey) Less(o AggregateKey) bool {
	if k.Ticker != o.Ticker {
		return k.Ticker < o.Ticker
	}
	if !k.DisclosureDate.Equal(o.DisclosureDate) {
		return k.DisclosureDate.Before(o.DisclosureDate)
	}
	return k.ReportDate.Before(o.ReportDate)
}

// Aggregate is a named derived quantity series keyed by filing
type Aggregate struct {
	Name   string
	Values map[AggregateKey]null.Float
}

// NewAggregate creates an empty aggregate
func NewAggregate(name string) Aggregate {
	return Aggregate{Name: name, Values: make(map[AggregateKey]null.Float)}
}

// Get returns the value at key, null when absent
func (a Aggregate) Get(k AggregateKey) null.Float {
	return a.Values[k]
}

// Empty reports whether the aggregate carries no valid value at all
func (a Aggregate) Empty() bool {
	for _, v := range a.Values {
		if v.Valid {
			return false
		}
	}
	return true
}
