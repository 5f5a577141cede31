package s5_walkforward

import (
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

func TestBuildDatasets_Labels(t *testing.T) {
	in := market(20, "PETR4")

	datasets := BuildDatasets(in, nil, 3)
	require.Len(t, datasets, 1)
	ds := datasets[0]

	// day 0 has no index return
	require.Equal(t, 19, ds.Len())
	assert.Equal(t, day(1), ds.Dates[0])
	assert.Equal(t, []string{FeatureVolume, FeatureIndexRet, FeatureRiskFree}, ds.Features)

	// close(day1) = 11, close(day4) = 14
	assert.True(t, ds.HasLabel[0])
	assert.True(t, ds.Signals[0])
	assert.InDelta(t, (14.0-11.0)/11.0*100, ds.Targets[0], 1e-9)
	assert.Equal(t, day(4), ds.LabelDates[0])

	// close(day4) = 14, close(day7) = 10
	assert.False(t, ds.Signals[3])

	for i := ds.Len() - 3; i < ds.Len(); i++ {
		assert.False(t, ds.HasLabel[i], "row %d has no bar horizon rows ahead", i)
	}
}

func TestBuildDatasets_Joins(t *testing.T) {
	in := market(10, "PETR4", "VALE3")
	in.CDI = append(in.CDI, contracts.RateBar{Date: day(5), Return: 0.0002})
	in.Indicators = map[string]contracts.IndicatorSeries{
		"p_l": {Name: "p_l", Points: []contracts.IndicatorPoint{
			{Date: day(2), Ticker: "PETR4", Value: null.FloatFrom(5)},
			{Date: day(6), Ticker: "PETR4", Value: null.FloatFrom(6)},
			{Date: day(6), Ticker: "VALE3", Value: null.FloatFrom(7)},
		}},
	}

	datasets := BuildDatasets(in, []string{"p_l"}, 1)
	require.Len(t, datasets, 2)

	petr := datasets[0]
	assert.Equal(t, "PETR4", petr.Ticker)
	assert.Equal(t, []string{FeatureVolume, FeatureIndexRet, FeatureRiskFree, "p_l"}, petr.Features)
	require.Equal(t, 2, petr.Len(), "rows without the indicator are dropped")
	assert.Equal(t, day(2), petr.Dates[0])
	assert.InDeltaSlice(t, []float64{1e6, 102.0/101.0 - 1, 0.0001, 5}, petr.Rows[0], 1e-12)

	// CDI is carried forward from its last print
	assert.Equal(t, 0.0002, petr.Rows[1][2])

	// labels shift over the kept rows
	assert.True(t, petr.HasLabel[0])
	assert.Equal(t, day(6), petr.LabelDates[0])
	assert.False(t, petr.HasLabel[1])

	assert.Equal(t, "VALE3", datasets[1].Ticker)
	assert.Equal(t, 1, datasets[1].Len())
}

func TestBuildDatasets_DropsBadBars(t *testing.T) {
	in := market(6, "PETR4")
	in.Prices[3].AdjustedClose = 0

	ds := BuildDatasets(in, nil, 1)[0]
	assert.NotContains(t, ds.Dates, day(3))
	assert.Equal(t, 4, ds.Len())
}

func TestBuildDatasets_NoCDIBeforeFirstPrint(t *testing.T) {
	in := market(6, "PETR4")
	in.CDI = []contracts.RateBar{{Date: day(4), Return: 0.0001}}

	ds := BuildDatasets(in, nil, 1)[0]
	assert.Equal(t, day(4), ds.Dates[0])
}

func TestDataset_Frames(t *testing.T) {
	ds := BuildDatasets(market(30, "PETR4"), nil, 5)[0]

	lo, hi := ds.span(day(1), day(21))
	assert.Equal(t, 0, lo)
	assert.Equal(t, 20, hi)

	train := ds.trainingFrame(lo, hi, day(21))
	require.NotZero(t, train.Len())
	last := train.Dates[train.Len()-1]
	assert.Equal(t, day(15), last, "labels realized on or after the cutoff are purged")

	tlo, thi := ds.span(day(21), day(28))
	frame, signals, targets := ds.testFrame(tlo, thi, 5, lo)
	assert.Equal(t, 5, frame.Context)
	assert.Equal(t, day(16), frame.Dates[0])
	assert.Len(t, signals, len(targets))
	// rows 21..24 have a bar five rows ahead (day 29 is the last)
	assert.Len(t, signals, 4)
	assert.NoError(t, frame.Validate())
}
