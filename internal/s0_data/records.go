package s0_data

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// File names under the input directory
const (
	FactsFile  = "facts.csv"
	PricesFile = "prices.csv"
	IndexFile  = "ibov.csv"
	CDIFile    = "cdi.csv"
)

// factRecord is one row of facts.csv. Empty value or shares cells are null.
type factRecord struct {
	ReportDate     string `csv:"report_date"`
	DisclosureDate string `csv:"disclosure_date"`
	Ticker         string `csv:"ticker"`
	Account        string `csv:"account"`
	Value          string `csv:"value"`
	Shares         string `csv:"shares"`
}

func (r factRecord) toFact() (contracts.StatementFact, error) {
	report, err := contracts.ParseDate(r.ReportDate)
	if err != nil {
		return contracts.StatementFact{}, fmt.Errorf("report_date: %w", err)
	}
	disclosure, err := contracts.ParseDate(r.DisclosureDate)
	if err != nil {
		return contracts.StatementFact{}, fmt.Errorf("disclosure_date: %w", err)
	}
	value, err := parseNullable(r.Value)
	if err != nil {
		return contracts.StatementFact{}, fmt.Errorf("value: %w", err)
	}
	shares, err := parseNullable(r.Shares)
	if err != nil {
		return contracts.StatementFact{}, fmt.Errorf("shares: %w", err)
	}
	return contracts.StatementFact{
		ReportDate:     report,
		DisclosureDate: disclosure,
		Ticker:         strings.TrimSpace(r.Ticker),
		Account:        strings.TrimSpace(r.Account),
		Value:          value,
		Shares:         shares,
	}, nil
}

func fromFact(f contracts.StatementFact) *factRecord {
	return &factRecord{
		ReportDate:     contracts.FormatDate(f.ReportDate),
		DisclosureDate: contracts.FormatDate(f.DisclosureDate),
		Ticker:         f.Ticker,
		Account:        f.Account,
		Value:          formatNullable(f.Value),
		Shares:         formatNullable(f.Shares),
	}
}

// priceRecord is one row of prices.csv
type priceRecord struct {
	Date          string  `csv:"date"`
	Ticker        string  `csv:"ticker"`
	Open          float64 `csv:"open"`
	High          float64 `csv:"high"`
	Low           float64 `csv:"low"`
	Close         float64 `csv:"close"`
	AdjustedClose float64 `csv:"adjusted_close"`
	Volume        float64 `csv:"volume"`
}

func (r priceRecord) toBar() (contracts.PriceBar, error) {
	d, err := contracts.ParseDate(r.Date)
	if err != nil {
		return contracts.PriceBar{}, err
	}
	return contracts.PriceBar{
		Date:          d,
		Ticker:        strings.TrimSpace(r.Ticker),
		Open:          r.Open,
		High:          r.High,
		Low:           r.Low,
		Close:         r.Close,
		AdjustedClose: r.AdjustedClose,
		Volume:        r.Volume,
	}, nil
}

// indexRecord is one row of ibov.csv
type indexRecord struct {
	Date  string  `csv:"date"`
	Close float64 `csv:"close"`
}

// rateRecord is one row of cdi.csv
type rateRecord struct {
	Date   string  `csv:"date"`
	Return float64 `csv:"return"`
}

func parseNullable(s string) (null.Float, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return null.Float{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}, err
	}
	return null.FloatFrom(v), nil
}

func formatNullable(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
