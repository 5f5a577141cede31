package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

func date(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestQualityGate_Check(t *testing.T) {
	md := contracts.MarketData{
		Prices: []contracts.PriceBar{
			{Date: date(1), Ticker: "PETR4", Volume: 100},
			{Date: date(4), Ticker: "PETR4", Volume: 100},
			{Date: date(1), Ticker: "VALE3", Volume: 100},
			{Date: date(4), Ticker: "VALE3", Volume: 0},
			{Date: date(1), Ticker: "ITUB4", Volume: 100},
		},
		Index: []contracts.IndexBar{{Date: date(1)}, {Date: date(4)}},
		CDI:   []contracts.RateBar{{Date: date(4)}},
	}
	facts := []contracts.StatementFact{
		{Ticker: "PETR4"},
		{Ticker: "ITUB4"},
	}

	gate := NewQualityGate(DefaultConfig(), logger.Nop())
	snapshot := gate.Check(facts, md)

	assert.Equal(t, date(4), snapshot.Date)
	assert.Equal(t, 3, snapshot.TotalTickers)
	assert.Equal(t, 1, snapshot.ValidTickers, "only PETR4 is priced on the last date and has facts")

	assert.InDelta(t, 2.0/3.0, snapshot.Coverage[CoveragePrice], 1e-9)
	assert.InDelta(t, 0.5, snapshot.Coverage[CoverageVolume], 1e-9)
	assert.InDelta(t, 2.0/3.0, snapshot.Coverage[CoverageFundamentals], 1e-9)
	assert.InDelta(t, 1.0, snapshot.Coverage[CoverageIndex], 1e-9)
	assert.InDelta(t, 0.5, snapshot.Coverage[CoverageCDI], 1e-9)

	require.Len(t, snapshot.Warnings, 1)
	assert.Contains(t, snapshot.Warnings[0], "price coverage")
	assert.False(t, snapshot.Passed)
}

func TestQualityGate_CheckFullCoverage(t *testing.T) {
	md := contracts.MarketData{
		Prices: []contracts.PriceBar{{Date: date(1), Ticker: "PETR4", Volume: 100}},
		Index:  []contracts.IndexBar{{Date: date(1)}},
		CDI:    []contracts.RateBar{{Date: date(1)}},
	}
	facts := []contracts.StatementFact{{Ticker: "PETR4"}}

	snapshot := NewQualityGate(DefaultConfig(), logger.Nop()).Check(facts, md)
	assert.InDelta(t, 1.0, snapshot.QualityScore, 1e-9)
	assert.Empty(t, snapshot.Warnings)
	assert.True(t, snapshot.Passed)
}

func TestQualityGate_CheckEmpty(t *testing.T) {
	snapshot := NewQualityGate(DefaultConfig(), logger.Nop()).Check(nil, contracts.MarketData{})
	assert.Zero(t, snapshot.TotalTickers)
	assert.False(t, snapshot.Passed)
	assert.Equal(t, []string{"no price data"}, snapshot.Warnings)
}

func TestQualityGate_calculateScore(t *testing.T) {
	gate := &QualityGate{
		config: Config{},
	}

	tests := []struct {
		name     string
		coverage map[string]float64
		wantMin  float64
		wantMax  float64
	}{
		{
			name: "perfect coverage",
			coverage: map[string]float64{
				CoveragePrice:        1.0,
				CoverageVolume:       1.0,
				CoverageFundamentals: 1.0,
				CoverageIndex:        1.0,
				CoverageCDI:          1.0,
			},
			wantMin: 0.99,
			wantMax: 1.01,
		},
		{
			name: "good coverage",
			coverage: map[string]float64{
				CoveragePrice:        0.95,
				CoverageVolume:       0.95,
				CoverageFundamentals: 0.85,
				CoverageIndex:        0.90,
				CoverageCDI:          0.80,
			},
			wantMin: 0.85,
			wantMax: 0.95,
		},
		{
			name: "poor coverage",
			coverage: map[string]float64{
				CoveragePrice:        0.60,
				CoverageVolume:       0.60,
				CoverageFundamentals: 0.40,
				CoverageIndex:        0.50,
				CoverageCDI:          0.30,
			},
			wantMin: 0.45,
			wantMax: 0.55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := gate.calculateScore(tt.coverage)
			assert.GreaterOrEqual(t, score, tt.wantMin)
			assert.LessOrEqual(t, score, tt.wantMax)
		})
	}
}
