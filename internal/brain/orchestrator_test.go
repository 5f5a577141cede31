package brain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/report"
	"github.com/wonny/b3factor/backend/internal/storage"
	"github.com/wonny/b3factor/backend/internal/strategyconfig"
	"github.com/wonny/b3factor/backend/pkg/config"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

var tickers = []string{"AAAA3", "BBBB3", "CCCC4", "DDDD3"}

type memSource struct {
	facts []contracts.StatementFact
	md    contracts.MarketData
}

func (s *memSource) LoadFacts(ctx context.Context) ([]contracts.StatementFact, error) {
	return s.facts, nil
}

func (s *memSource) LoadPrices(ctx context.Context) ([]contracts.PriceBar, error) {
	return s.md.Prices, nil
}

func (s *memSource) LoadIndex(ctx context.Context) ([]contracts.IndexBar, error) {
	return s.md.Index, nil
}

func (s *memSource) LoadCDI(ctx context.Context) ([]contracts.RateBar, error) {
	return s.md.CDI, nil
}

func (s *memSource) Close() error { return nil }

func day(i int) time.Time {
	return time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func fixture(days int) *memSource {
	src := &memSource{}
	for k, t := range tickers {
		for _, account := range []struct {
			code  string
			value float64
		}{
			{"3.01", 500 + float64(k)*10},
			{"3.03", 200 + float64(k)*10},
			{"3.04", -80},
			{"2.03", 1000},
			{"1", 3000},
			{"3.11", 60 + float64(k)},
		} {
			src.facts = append(src.facts, contracts.StatementFact{
				ReportDate:     time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC),
				DisclosureDate: day(3),
				Ticker:         t,
				Account:        account.code,
				Value:          null.FloatFrom(account.value),
				Shares:         null.FloatFrom(1e6),
			})
		}
		for i := 0; i < days; i++ {
			c := 10 + float64((i+k)%7)
			src.md.Prices = append(src.md.Prices, contracts.PriceBar{
				Date: day(i), Ticker: t,
				Open: c, High: c, Low: c, Close: c, AdjustedClose: c,
				Volume: 1e6 + float64(k),
			})
		}
	}
	for i := 0; i < days; i++ {
		src.md.Index = append(src.md.Index, contracts.IndexBar{Date: day(i), Close: 100 + float64(i)})
	}
	src.md.CDI = []contracts.RateBar{{Date: day(0), Return: 0.0004}}
	return src
}

func newTestOrchestrator(t *testing.T, src contracts.Source, strategy *strategyconfig.Config) (*Orchestrator, *storage.ParquetStore, *config.Config) {
	t.Helper()
	cfg := &config.Config{Pipeline: config.PipelineConfig{
		DataDir:     t.TempDir(),
		Workers:     2,
		ProbeTicker: "AAAA3",
	}}
	store, err := storage.NewParquetStore(cfg.Pipeline.OutputDir(), logger.Nop())
	require.NoError(t, err)
	return NewOrchestrator(cfg, strategy, src, store, nil, logger.Nop()), store, cfg
}

func testStrategy() *strategyconfig.Config {
	s := strategyconfig.Default()
	s.Premium.Strategies = []contracts.Strategy{{
		Name:     "operating",
		Criteria: []contracts.Criterion{{Indicator: "ebit", Direction: contracts.Descending}},
		Floors:   []float64{0},
	}}
	return s
}

func TestRun_BuildsLibraryAndPremiums(t *testing.T) {
	o, store, _ := newTestOrchestrator(t, fixture(120), testStrategy())

	result, err := o.Run(context.Background(), RunConfig{RunID: "run-1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Nil(t, result.Report, "walk-forward is disabled by default")

	stages := make([]contracts.Stage, 0)
	for _, r := range result.Summary.Results {
		assert.True(t, r.Success)
		stages = append(stages, r.Stage)
	}
	assert.Equal(t, []contracts.Stage{
		contracts.StageData,
		contracts.StageStatements,
		contracts.StageIndicators,
		contracts.StagePremium,
	}, stages)

	require.NotNil(t, result.QualitySnapshot)
	assert.Equal(t, 4, result.QualitySnapshot.ValidTickers)

	names, err := store.ListIndicators(context.Background())
	require.NoError(t, err)
	assert.Contains(t, names, "ebit")
	assert.Contains(t, names, "roe")
	assert.Contains(t, names, "median_volume_21")
	assert.Contains(t, names, "market_premium")

	// daily validity runs from the disclosure through the last price date
	ebit, err := store.LoadIndicator(context.Background(), "ebit")
	require.NoError(t, err)
	last := ebit.Points[len(ebit.Points)-1]
	assert.Equal(t, "DDDD3", last.Ticker)
	assert.Equal(t, day(119), last.Date)
	assert.Equal(t, day(3), ebit.Points[0].Date)
}

func TestRun_QualityGateStopsEmptyInput(t *testing.T) {
	src := fixture(30)
	src.facts = nil
	o, _, _ := newTestOrchestrator(t, src, testStrategy())

	result, err := o.Run(context.Background(), RunConfig{RunID: "run-2"})
	require.Error(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Summary.Results, 1)
	assert.Equal(t, contracts.StageData, result.Summary.Results[0].Stage)
	assert.False(t, result.Summary.Results[0].Success)
}

func TestRun_WalkForwardPublishesReport(t *testing.T) {
	strategy := testStrategy()
	strategy.WalkForward = strategyconfig.WalkForward{
		Enabled:    true,
		Model:      "majority",
		Mode:       "fixed",
		Window:     "expanding",
		TrainDays:  60,
		StepDays:   20,
		TestDays:   20,
		MaxWindows: 2,
		Horizon:    5,
		Lookback:   5,
		Indicators: []string{"ebit"},
	}
	o, _, cfg := newTestOrchestrator(t, fixture(150), strategy)

	result, err := o.Run(context.Background(), RunConfig{RunID: "run-3"})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Equal(t, "run-3", result.Report.RunID)
	assert.Equal(t, "majority", result.Report.Model)
	assert.Empty(t, result.Report.Failed)

	assert.Equal(t, filepath.Join(cfg.Pipeline.OutputDir(), ReportsDir, "run-3"), result.ReportDir)
	for _, name := range []string{report.CSVFile, report.JSONFile, report.XLSXFile} {
		_, err := os.Stat(filepath.Join(result.ReportDir, name))
		assert.NoError(t, err, name)
	}
}

func TestRun_SkipWalkForward(t *testing.T) {
	strategy := testStrategy()
	strategy.WalkForward.Enabled = true
	strategy.WalkForward.Indicators = []string{"ebit"}
	o, _, _ := newTestOrchestrator(t, fixture(60), strategy)

	result, err := o.Run(context.Background(), RunConfig{RunID: "run-4", SkipWalkForward: true})
	require.NoError(t, err)
	assert.Nil(t, result.Report)
	assert.Len(t, result.Summary.Results, 4)
}

func TestBuildPremiums_MissingVolumeIndicatorIsFatal(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, fixture(30), testStrategy())

	_, err := o.BuildPremiums(context.Background(), nil)
	assert.ErrorIs(t, err, contracts.ErrFatalConfiguration)
}
