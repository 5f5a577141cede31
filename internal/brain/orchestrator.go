package brain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/forecast"
	"github.com/wonny/b3factor/backend/internal/report"
	"github.com/wonny/b3factor/backend/internal/s0_data"
	"github.com/wonny/b3factor/backend/internal/s0_data/quality"
	"github.com/wonny/b3factor/backend/internal/s1_statements"
	"github.com/wonny/b3factor/backend/internal/s2_pointintime"
	"github.com/wonny/b3factor/backend/internal/s3_indicators"
	"github.com/wonny/b3factor/backend/internal/s4_premium"
	"github.com/wonny/b3factor/backend/internal/s5_walkforward"
	"github.com/wonny/b3factor/backend/internal/storage"
	"github.com/wonny/b3factor/backend/internal/strategyconfig"
	"github.com/wonny/b3factor/backend/pkg/config"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// ReportsDir is the sub-directory of the output directory holding published reports
const ReportsDir = "reports"

// Orchestrator coordinates the S0 → S5 pipeline
// ⭐ SSOT: pipeline sequencing lives here only
type Orchestrator struct {
	config   *config.Config
	strategy *strategyconfig.Config

	source      contracts.Source
	store       contracts.Store
	qualityGate *quality.QualityGate
	qualityRepo *quality.Repository // nil without a database

	logger *logger.Logger
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	RunID string

	// SkipWalkForward stops after the premium tables even when the
	// strategy file enables the backtest
	SkipWalkForward bool
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	RunID           string
	Success         bool
	Error           error
	Summary         contracts.RunSummary
	QualitySnapshot *contracts.DataQualitySnapshot
	Indicators      []string
	Premiums        []contracts.PremiumSeries
	Report          *contracts.BacktestReport
	ReportDir       string
	Duration        time.Duration
}

// Inputs is everything S0 loads
type Inputs struct {
	Facts   []contracts.StatementFact
	Market  contracts.MarketData
	Quality *contracts.DataQualitySnapshot
}

// NewOrchestrator creates a new orchestrator. qualityRepo may be nil.
func NewOrchestrator(
	cfg *config.Config,
	strategy *strategyconfig.Config,
	source contracts.Source,
	store contracts.Store,
	qualityRepo *quality.Repository,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:      cfg,
		strategy:    strategy,
		source:      source,
		store:       store,
		qualityGate: quality.NewQualityGate(quality.DefaultConfig(), log),
		qualityRepo: qualityRepo,
		logger:      log.WithComponent("brain"),
	}
}

// Run executes the complete pipeline
// S0 → S1 → S2 → S3 → S4 → S5
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig) (*RunResult, error) {
	startTime := time.Now()

	result := &RunResult{
		RunID:   rc.RunID,
		Summary: contracts.RunSummary{RunID: rc.RunID, StartedAt: startTime.Unix()},
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":       rc.RunID,
		"config_id":    o.strategy.Meta.ConfigID,
		"input_source": o.config.Pipeline.InputSource,
		"output_store": o.config.Pipeline.OutputStore,
		"workers":      o.config.Pipeline.Workers,
	}).Info("Starting pipeline run")

	fail := func(stage contracts.Stage, err error) (*RunResult, error) {
		result.Error = fmt.Errorf("%s failed: %w", stage.ShortName(), err)
		result.Duration = time.Since(startTime)
		return result, result.Error
	}

	// S0: inputs + quality gate
	var in *Inputs
	err := o.stage(&result.Summary, contracts.StageData, func() (int, int, error) {
		var err error
		in, err = o.LoadInputs(ctx, rc.RunID)
		if err != nil {
			return 0, 0, err
		}
		return len(in.Facts), len(in.Market.Prices), nil
	})
	if err != nil {
		return fail(contracts.StageData, err)
	}
	result.QualitySnapshot = in.Quality

	// S1: statements
	var aggs *s1_statements.Aggregates
	err = o.stage(&result.Summary, contracts.StageStatements, func() (int, int, error) {
		var err error
		var normalized []contracts.StatementFact
		normalized, aggs, err = o.Normalize(ctx, in.Facts)
		return len(in.Facts), len(normalized), err
	})
	if err != nil {
		return fail(contracts.StageStatements, err)
	}

	// S2 + S3: point-in-time ratios, technical and market indicators
	var library []contracts.IndicatorSeries
	err = o.stage(&result.Summary, contracts.StageIndicators, func() (int, int, error) {
		fundamentals, err := o.BuildFundamentals(ctx, aggs, in.Market.Prices)
		if err != nil {
			return 0, 0, err
		}
		technical, err := o.BuildTechnical(ctx, in.Market)
		if err != nil {
			return 0, 0, err
		}
		library = append(fundamentals, technical...)
		if err := o.SaveIndicators(ctx, library); err != nil {
			return 0, 0, err
		}
		return len(aggs.Keys), len(library), nil
	})
	if err != nil {
		return fail(contracts.StageIndicators, err)
	}
	for _, s := range library {
		result.Indicators = append(result.Indicators, s.Name)
	}

	// S4: risk premiums
	err = o.stage(&result.Summary, contracts.StagePremium, func() (int, int, error) {
		var err error
		result.Premiums, err = o.BuildPremiums(ctx, in.Market.Prices)
		return len(o.strategy.Premium.Strategies), len(result.Premiums), err
	})
	if err != nil {
		return fail(contracts.StagePremium, err)
	}

	// S5: walk-forward
	if o.strategy.WalkForward.Enabled && !rc.SkipWalkForward {
		err = o.stage(&result.Summary, contracts.StageWalkForward, func() (int, int, error) {
			r, dir, err := o.RunWalkForward(ctx, rc.RunID, in.Market)
			if err != nil {
				return 0, 0, err
			}
			result.Report = r
			result.ReportDir = dir
			return len(in.Market.Prices), len(r.Rows), nil
		})
		if err != nil {
			return fail(contracts.StageWalkForward, err)
		}
	} else {
		o.logger.Info("Skipping S5:WalkForward")
	}

	result.Success = true
	result.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"run_id":     rc.RunID,
		"duration":   result.Duration.Seconds(),
		"stages":     len(result.Summary.Results),
		"indicators": len(result.Indicators),
		"premiums":   len(result.Premiums),
	}).Info("Pipeline run completed successfully")

	return result, nil
}

// stage times fn and records its outcome in the summary
func (o *Orchestrator) stage(summary *contracts.RunSummary, stage contracts.Stage, fn func() (int, int, error)) error {
	o.logger.Infof("Running %s: %s", stage.ShortName(), stage.Description())
	start := time.Now()

	input, output, err := fn()
	res := contracts.PipelineResult{
		Stage:       stage,
		Success:     err == nil,
		InputCount:  input,
		OutputCount: output,
		Duration:    time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	summary.Results = append(summary.Results, res)

	o.logger.WithFields(map[string]interface{}{
		"stage":       stage.ShortName(),
		"input":       input,
		"output":      output,
		"duration_ms": res.Duration,
	}).Info("Stage completed")
	return err
}

// LoadInputs runs S0: facts and market data are read concurrently, then the
// quality gate checks coverage. Only an input with no usable ticker fails.
func (o *Orchestrator) LoadInputs(ctx context.Context, runID string) (*Inputs, error) {
	in := &Inputs{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		facts, err := o.source.LoadFacts(gctx)
		if err != nil {
			return fmt.Errorf("load facts: %w", err)
		}
		in.Facts = facts
		return nil
	})
	g.Go(func() error {
		md, err := s0_data.LoadMarket(gctx, o.source)
		if err != nil {
			return err
		}
		in.Market = md
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := o.qualityGate.Check(in.Facts, in.Market)
	in.Quality = snapshot

	if o.qualityRepo != nil {
		if err := o.qualityRepo.SaveSnapshot(ctx, runID, snapshot); err != nil {
			return nil, fmt.Errorf("save quality snapshot: %w", err)
		}
	}

	if !snapshot.IsValid() {
		return nil, fmt.Errorf("quality gate failed: score=%.2f valid=%d", snapshot.QualityScore, snapshot.ValidTickers)
	}
	if !snapshot.Passed {
		o.logger.WithFields(map[string]interface{}{
			"quality_score": snapshot.QualityScore,
			"warnings":      snapshot.Warnings,
		}).Warn("Quality gate passed with warnings")
	}

	return in, nil
}

// Normalize runs S1 and derives the named aggregates
func (o *Orchestrator) Normalize(ctx context.Context, facts []contracts.StatementFact) ([]contracts.StatementFact, *s1_statements.Aggregates, error) {
	normalizer := s1_statements.NewNormalizer(s1_statements.Config{
		Workers:       o.config.Pipeline.Workers,
		ZeroAsMissing: o.strategy.Statements.ZeroAsMissing,
	}, o.logger)

	normalized, err := normalizer.Normalize(ctx, facts)
	if err != nil {
		return nil, nil, err
	}

	aggs, err := s1_statements.Derive(s1_statements.NewTable(normalized), o.logger)
	if err != nil {
		return nil, nil, err
	}
	return normalized, aggs, nil
}

// BuildFundamentals runs S2 and S3: filings are matched to the price on or
// before their disclosure, ratios are computed per filing and then expanded
// to daily validity up to the last price date.
func (o *Orchestrator) BuildFundamentals(ctx context.Context, aggs *s1_statements.Aggregates, prices []contracts.PriceBar) ([]contracts.IndicatorSeries, error) {
	joined := s2_pointintime.AsofJoinPrices(aggs.Keys, prices)

	engine := s3_indicators.NewEngine(s3_indicators.Config{
		Workers: o.config.Pipeline.Workers,
		Expand: s2_pointintime.ExpandOptions{
			LegacyExtraDay: o.config.Pipeline.LegacyExtraDay,
			Until:          lastDate(prices),
		},
	}, o.logger)

	results, err := engine.Compute(ctx, aggs, joined)
	if err != nil {
		return nil, err
	}
	return engine.ExpandAll(results), nil
}

// BuildTechnical computes the price based indicators and the market premium
func (o *Orchestrator) BuildTechnical(ctx context.Context, md contracts.MarketData) ([]contracts.IndicatorSeries, error) {
	technical := s3_indicators.NewTechnical(o.technicalConfig(), o.logger)

	series, err := technical.Compute(ctx, md.Prices, md.Index)
	if err != nil {
		return nil, err
	}

	if len(md.CDI) == 0 {
		o.logger.WarnOnce("missing_input:cdi", "CDI history is empty, market premium skipped")
		return series, nil
	}
	return append(series, s3_indicators.MarketPremium(md.Index, md.CDI)), nil
}

func (o *Orchestrator) technicalConfig() s3_indicators.TechnicalConfig {
	t := o.strategy.Technical
	return s3_indicators.TechnicalConfig{
		Workers:        o.config.Pipeline.Workers,
		VolumeWindow:   t.VolumeWindow,
		MomentumMonths: t.MomentumMonths,
		VolWindow:      t.VolWindow,
		ShortMA:        t.ShortMA,
		LongMA:         t.LongMA,
		RSIPeriod:      t.RSIPeriod,
		BetaWindow:     t.BetaWindow,
	}
}

// SaveIndicators writes every series to the store
func (o *Orchestrator) SaveIndicators(ctx context.Context, library []contracts.IndicatorSeries) error {
	for _, s := range library {
		if err := o.store.SaveIndicator(ctx, s); err != nil {
			return fmt.Errorf("save indicator %s: %w", s.Name, err)
		}
	}
	o.logger.WithField("count", len(library)).Info("Indicator library saved")
	return nil
}

// BuildPremiums runs S4 over the stored indicator library and saves every table
func (o *Orchestrator) BuildPremiums(ctx context.Context, prices []contracts.PriceBar) ([]contracts.PremiumSeries, error) {
	p := o.strategy.Premium
	if len(p.Strategies) == 0 {
		return nil, nil
	}

	names := []string{p.VolumeIndicator}
	for _, s := range p.Strategies {
		for _, c := range s.Criteria {
			names = append(names, c.Indicator)
		}
	}
	indicators, err := o.loadIndicators(ctx, names)
	if err != nil {
		return nil, err
	}
	if _, ok := indicators[p.VolumeIndicator]; !ok {
		return nil, contracts.FatalConfigf("volume indicator %s not in the library", p.VolumeIndicator)
	}

	builder := s4_premium.NewBuilder(s4_premium.Config{
		Workers:         o.config.Pipeline.Workers,
		ProbeTicker:     o.config.Pipeline.ProbeTicker,
		VolumeIndicator: p.VolumeIndicator,
		GraceMonths:     p.GraceMonths,
	}, o.logger)

	premiums, err := builder.Build(ctx, p.Strategies, s4_premium.Inputs{
		Prices:     prices,
		Indicators: indicators,
	})
	if err != nil {
		return nil, err
	}

	for _, s := range premiums {
		if err := o.store.SavePremium(ctx, s); err != nil {
			return nil, fmt.Errorf("save premium %s: %w", s.Strategy, err)
		}
	}
	return premiums, nil
}

// RunWalkForward runs S5, saves the report and publishes it under the
// reports directory. Returns the report and its directory.
func (o *Orchestrator) RunWalkForward(ctx context.Context, runID string, md contracts.MarketData) (*contracts.BacktestReport, string, error) {
	w := o.strategy.WalkForward

	model, err := forecast.New(w.Model)
	if err != nil {
		return nil, "", contracts.FatalConfigf("%v", err)
	}

	indicators, err := o.loadIndicators(ctx, w.Indicators)
	if err != nil {
		return nil, "", err
	}

	backtester := s5_walkforward.NewBacktester(s5_walkforward.Config{
		Workers:     o.config.Pipeline.Workers,
		Mode:        w.Mode,
		Window:      w.Window,
		TrainDays:   w.TrainDays,
		HoldoutDays: w.HoldoutDays,
		StepDays:    w.StepDays,
		TestDays:    w.TestDays,
		MaxWindows:  w.MaxWindows,
		Horizon:     w.Horizon,
		Lookback:    w.Lookback,
		Indicators:  w.Indicators,
	}, model, o.logger)

	r, err := backtester.Run(ctx, s5_walkforward.Inputs{
		Prices:     md.Prices,
		Index:      md.Index,
		CDI:        md.CDI,
		Indicators: indicators,
	})
	if err != nil {
		return nil, "", err
	}
	r.RunID = runID
	r.CreatedAt = time.Now().UTC()

	if err := o.store.SaveReport(ctx, r); err != nil {
		return nil, "", fmt.Errorf("save report: %w", err)
	}

	publisher := report.NewPublisher(filepath.Join(o.config.Pipeline.OutputDir(), ReportsDir), o.logger)
	dir, err := publisher.Publish(r)
	if err != nil {
		return nil, "", err
	}
	return &r, dir, nil
}

// loadIndicators reads the named series from the store. Missing tables are
// logged and left out; callers decide whether that is fatal.
func (o *Orchestrator) loadIndicators(ctx context.Context, names []string) (map[string]contracts.IndicatorSeries, error) {
	out := make(map[string]contracts.IndicatorSeries, len(names))
	for _, name := range names {
		if _, ok := out[name]; ok {
			continue
		}
		s, err := o.store.LoadIndicator(ctx, name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				o.logger.WarnOnce("missing_indicator:"+name, "Indicator "+name+" not in the library")
				continue
			}
			return nil, fmt.Errorf("load indicator %s: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

func lastDate(prices []contracts.PriceBar) time.Time {
	var last time.Time
	for _, p := range prices {
		if p.Date.After(last) {
			last = p.Date
		}
	}
	return contracts.Day(last)
}
