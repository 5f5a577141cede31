package contracts

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestQuarter(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2020-01-31", 1},
		{"2020-03-31", 1},
		{"2020-04-01", 2},
		{"2020-06-30", 2},
		{"2020-09-30", 3},
		{"2020-10-01", 4},
		{"2020-12-31", 4},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, Quarter(day(tt.date)))
		})
	}
}

func TestMonthEnds(t *testing.T) {
	dates := []time.Time{
		day("2021-01-28"), day("2021-01-29"),
		day("2021-02-01"), day("2021-02-26"),
		day("2021-03-01"),
	}

	got := MonthEnds(dates)
	assert.Equal(t, []time.Time{day("2021-01-29"), day("2021-02-26"), day("2021-03-01")}, got)
	assert.Empty(t, MonthEnds(nil))
}

func TestTickerRoot(t *testing.T) {
	assert.Equal(t, "PETR", TickerRoot("PETR4"))
	assert.Equal(t, "PETR", TickerRoot("PETR3"))
	assert.Equal(t, "TAEE", TickerRoot("TAEE11"))
	assert.Equal(t, "AB", TickerRoot("AB"))
}

func TestAggregateKeyLess(t *testing.T) {
	a := AggregateKey{Ticker: "ABEV3", DisclosureDate: day("2020-05-10"), ReportDate: day("2020-03-31")}
	b := AggregateKey{Ticker: "ABEV3", DisclosureDate: day("2020-08-10"), ReportDate: day("2020-06-30")}
	c := AggregateKey{Ticker: "BBAS3", DisclosureDate: day("2019-01-01"), ReportDate: day("2018-12-31")}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c))
}

func TestAggregateEmpty(t *testing.T) {
	agg := NewAggregate("ebit")
	assert.True(t, agg.Empty())

	k := AggregateKey{Ticker: "VALE3"}
	agg.Values[k] = null.Float{}
	assert.True(t, agg.Empty())

	agg.Values[k] = null.FloatFrom(1)
	assert.False(t, agg.Empty())
	assert.Equal(t, 1.0, agg.Get(k).Float64)
	assert.False(t, agg.Get(AggregateKey{Ticker: "X"}).Valid)
}

func TestTickerErrorUnwrap(t *testing.T) {
	cause := errors.New("model diverged")
	err := fmt.Errorf("stage failed: %w", NewTickerError(StageWalkForward, "WEGE3", cause))

	assert.ErrorIs(t, err, ErrPerTickerFailure)
	assert.ErrorIs(t, err, cause)

	var te *TickerError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "WEGE3", te.Ticker)
	assert.Contains(t, te.Error(), "S5")
}

func TestRecoverTicker(t *testing.T) {
	run := func() (err error) {
		defer RecoverTicker(StagePremium, "ITUB4", &err)
		panic("index out of range")
	}

	err := run()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPerTickerFailure)
}

func TestFatalConfigf(t *testing.T) {
	err := FatalConfigf("aggregate %s is empty", "ebit")
	assert.ErrorIs(t, err, ErrFatalConfiguration)
	assert.Contains(t, err.Error(), "ebit")
}

func TestStages(t *testing.T) {
	for i, s := range AllStages() {
		assert.Equal(t, fmt.Sprintf("S%d", i), s.ShortName())
		assert.True(t, IsValidStage(s.String()))
	}
	assert.False(t, IsValidStage("S9_NOPE"))
}

func TestIndicatorSeriesIndex(t *testing.T) {
	s := IndicatorSeries{Name: "roe", Points: []IndicatorPoint{
		{Date: day("2020-01-02"), Ticker: "B", Value: null.FloatFrom(2)},
		{Date: day("2020-01-01"), Ticker: "A", Value: null.Float{}},
		{Date: day("2020-01-01"), Ticker: "B", Value: null.FloatFrom(1)},
	}}

	idx := s.Index()
	assert.Len(t, idx, 2)
	assert.Equal(t, 1.0, idx[IndicatorKey{Date: day("2020-01-01"), Ticker: "B"}])

	SortPoints(s.Points)
	assert.Equal(t, "A", s.Points[0].Ticker)
	assert.Equal(t, day("2020-01-01"), s.Points[1].Date)
}

func TestDataQualitySnapshot(t *testing.T) {
	snap := DataQualitySnapshot{
		ValidTickers: 10,
		QualityScore: 0.8,
		Coverage:     map[string]float64{"prices": 1.0, "facts": 0.6},
	}
	assert.True(t, snap.IsValid())
	assert.InDelta(t, 0.8, snap.CoverageRate(), 1e-9)

	snap.ValidTickers = 0
	assert.False(t, snap.IsValid())
}
