package s5_walkforward

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/forecast"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// Modes of the initial training window
const (
	ModeFixed   = "fixed"   // TrainDays from the first row
	ModeHoldout = "holdout" // everything but the last HoldoutDays
)

// Window kinds
const (
	WindowExpanding = "expanding" // train start stays on the first row
	WindowRolling   = "rolling"   // train start moves with the step
)

// Config holds walk-forward options
type Config struct {
	Workers     int
	Mode        string
	Window      string
	TrainDays   int
	HoldoutDays int
	StepDays    int
	TestDays    int
	MaxWindows  int // windows that produced a row, 0 runs until the data is exhausted
	Horizon     int // label horizon in rows
	Lookback    int // context rows handed to Predict ahead of the test rows
	Indicators  []string
}

// DefaultConfig returns a 2 year expanding walk-forward with a 30 day step
func DefaultConfig() Config {
	return Config{
		Workers:     1,
		Mode:        ModeFixed,
		Window:      WindowExpanding,
		TrainDays:   730,
		HoldoutDays: 365,
		StepDays:    30,
		TestDays:    30,
		Horizon:     21,
		Lookback:    21,
	}
}

// Backtester runs the walk-forward loop per ticker
type Backtester struct {
	config Config
	model  forecast.Forecaster
	logger *logger.Logger
}

// NewBacktester creates a backtester delegating fit/predict to model
func NewBacktester(config Config, model forecast.Forecaster, log *logger.Logger) *Backtester {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.TestDays <= 0 {
		config.TestDays = config.StepDays
	}
	return &Backtester{
		config: config,
		model:  model,
		logger: log.WithComponent("s5_walkforward"),
	}
}

// Run builds the datasets and walks every ticker forward. A ticker that fails
// is logged and contributes no rows. Rows are sorted by ticker, then test start.
// ⭐ SSOT: S5 walk-forward evaluation
func (b *Backtester) Run(ctx context.Context, in Inputs) (contracts.BacktestReport, error) {
	report := contracts.BacktestReport{Model: b.model.Name()}
	if b.config.StepDays <= 0 {
		return report, contracts.FatalConfigf("walk-forward step must be positive, got %d", b.config.StepDays)
	}
	for _, name := range b.config.Indicators {
		if _, ok := in.Indicators[name]; !ok {
			return report, contracts.FatalConfigf("walk-forward indicator %s not loaded", name)
		}
	}

	datasets := BuildDatasets(in, b.config.Indicators, b.config.Horizon)

	results := make([][]contracts.BacktestRow, len(datasets))
	failed := make([]bool, len(datasets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Workers)

	for i, ds := range datasets {
		i, ds := i, ds
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := b.runSafely(gctx, ds)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				b.logger.WithField("ticker", ds.Ticker).WithError(err).Warn("Walk-forward failed, ticker excluded")
				failed[i] = true
				return nil
			}
			results[i] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("walk-forward: %w", err)
	}

	for i, ds := range datasets {
		if failed[i] {
			report.Failed = append(report.Failed, ds.Ticker)
			continue
		}
		report.Rows = append(report.Rows, results[i]...)
	}
	report.SortRows()
	sort.Strings(report.Failed)

	b.logger.WithFields(map[string]interface{}{
		"tickers": len(datasets),
		"rows":    len(report.Rows),
		"failed":  len(report.Failed),
	}).Info("Walk-forward completed")

	return report, nil
}

func (b *Backtester) runSafely(ctx context.Context, ds *Dataset) (rows []contracts.BacktestRow, err error) {
	defer contracts.RecoverTicker(contracts.StageWalkForward, ds.Ticker, &err)
	rows, err = b.RunTicker(ctx, ds)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = contracts.NewTickerError(contracts.StageWalkForward, ds.Ticker, err)
	}
	return rows, err
}

// window is the state carried between transitions
type window struct {
	trainStart time.Time
	trainEnd   time.Time // exclusive, equals testStart
	testStart  time.Time
	testEnd    time.Time // exclusive
	evaluated  int       // windows that produced a row
}

// RunTicker drives the state machine over one dataset
func (b *Backtester) RunTicker(ctx context.Context, ds *Dataset) ([]contracts.BacktestRow, error) {
	var rows []contracts.BacktestRow
	var w window
	var model forecast.Model
	var trainScores forecast.Scores

	state := Initializing
	for state != Done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state {
		case Initializing:
			if ds.Len() == 0 {
				state = Done
				continue
			}
			w.trainStart = ds.Dates[0]
			if b.config.Mode == ModeHoldout {
				w.trainEnd = ds.Dates[ds.Len()-1].AddDate(0, 0, -b.config.HoldoutDays)
			} else {
				w.trainEnd = w.trainStart.AddDate(0, 0, b.config.TrainDays)
			}
			w.testStart = w.trainEnd
			w.testEnd = w.testStart.AddDate(0, 0, b.config.TestDays)
			state = b.next(ds, w)

		case Training:
			lo, hi := ds.span(w.trainStart, w.trainEnd)
			frame := ds.trainingFrame(lo, hi, w.testStart)
			if frame.Len() == 0 {
				b.logger.WithFields(map[string]interface{}{
					"ticker":     ds.Ticker,
					"test_start": contracts.FormatDate(w.testStart),
				}).Debug("No labeled training rows, skipping window")
				state = Advancing
				continue
			}

			m, err := b.model.Train(ctx, frame)
			if err != nil {
				return nil, fmt.Errorf("train window %s: %w", contracts.FormatDate(w.testStart), err)
			}
			preds, err := b.model.Predict(ctx, m, frame.Frame)
			if err != nil {
				return nil, fmt.Errorf("predict training window %s: %w", contracts.FormatDate(w.testStart), err)
			}
			model = m
			trainScores = forecast.Evaluate(preds, frame.Signals, frame.Targets)
			state = Testing

		case Testing:
			row, ok, err := b.test(ctx, ds, w, model)
			if err != nil {
				return nil, err
			}
			if ok {
				row.TrainAccuracy = trainScores.Accuracy
				rows = append(rows, row)
				w.evaluated++
			}
			state = Advancing

		case Advancing:
			if b.config.MaxWindows > 0 && w.evaluated >= b.config.MaxWindows {
				state = Done
				continue
			}
			if b.config.Window == WindowRolling {
				w.trainStart = w.trainStart.AddDate(0, 0, b.config.StepDays)
			}
			w.trainEnd = w.trainEnd.AddDate(0, 0, b.config.StepDays)
			w.testStart = w.testStart.AddDate(0, 0, b.config.StepDays)
			w.testEnd = w.testEnd.AddDate(0, 0, b.config.StepDays)
			state = b.next(ds, w)
		}
	}
	return rows, nil
}

// test is the Testing state: predict the test window and score it
func (b *Backtester) test(ctx context.Context, ds *Dataset, w window, model forecast.Model) (contracts.BacktestRow, bool, error) {
	lo, hi := ds.span(w.testStart, w.testEnd)
	floor, _ := ds.span(w.trainStart, w.trainEnd)
	frame, signals, targets := ds.testFrame(lo, hi, b.config.Lookback, floor)
	if len(signals) == 0 {
		return contracts.BacktestRow{}, false, nil
	}

	preds, err := b.model.Predict(ctx, model, frame)
	if err != nil {
		return contracts.BacktestRow{}, false, fmt.Errorf("predict test window %s: %w", contracts.FormatDate(w.testStart), err)
	}
	if len(preds) != len(signals) {
		return contracts.BacktestRow{}, false, fmt.Errorf("model returned %d predictions for %d test rows", len(preds), len(signals))
	}

	scores := forecast.Evaluate(preds, signals, targets)
	return contracts.BacktestRow{
		Ticker:    ds.Ticker,
		TestStart: w.testStart,
		TestEnd:   w.testEnd,
		Accuracy:  scores.Accuracy,
		MAE:       scores.MAE,
		RMSE:      scores.RMSE,
		Samples:   scores.Samples,
	}, true, nil
}

// next moves to Training while the test window has rows, Done otherwise
func (b *Backtester) next(ds *Dataset, w window) State {
	lo, hi := ds.span(w.testStart, w.testEnd)
	if hi <= lo {
		return Done
	}
	return Training
}
