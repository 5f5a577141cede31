package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/b3factor/backend/internal/brain"
	"github.com/wonny/b3factor/backend/internal/report"
	"github.com/wonny/b3factor/backend/internal/s0_data"
)

// NormalizedFile is the normalized statement table written by normalize
const NormalizedFile = "statements_normalized.csv"

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "S1: normalize statements",
	Long: `Loads the statement facts, isolates Q4, applies sign rules and writes
the normalized table to the output directory.

Example:
  go run ./cmd/quant normalize`,
	RunE: runNormalize,
}

var indicatorsCmd = &cobra.Command{
	Use:   "indicators",
	Short: "S2+S3: fundamental indicator library",
	Long: `Normalizes statements, joins each filing to the price on or before its
disclosure date, computes every fundamental ratio and saves the daily
point-in-time tables.

Example:
  go run ./cmd/quant indicators`,
	RunE: runIndicators,
}

var technicalCmd = &cobra.Command{
	Use:   "technical",
	Short: "S3: technical indicators and market premium",
	Long: `Computes momentum, volatility, moving average, RSI, beta and median
volume per ticker plus the monthly market premium, and saves them.

Example:
  go run ./cmd/quant technical`,
	RunE: runTechnical,
}

var premiumCmd = &cobra.Command{
	Use:   "premium",
	Short: "S4: risk premium portfolios",
	Long: `Ranks the universe on each strategy at month-ends, splits it into
quartiles and saves the quartile return tables. Reads the stored indicator
library, so run indicators and technical first.

Example:
  go run ./cmd/quant premium`,
	RunE: runPremium,
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "S5: walk-forward backtest",
	Long: `Retrains the configured model on rolling windows and scores each
out-of-sample window. Reads the stored indicator library.

Example:
  go run ./cmd/quant backtest
  go run ./cmd/quant backtest --model majority --max-windows 12`,
	RunE: runBacktest,
}

var (
	backtestModel      string
	backtestMaxWindows int
)

func init() {
	rootCmd.AddCommand(normalizeCmd, indicatorsCmd, technicalCmd, premiumCmd, backtestCmd)

	backtestCmd.Flags().StringVar(&backtestModel, "model", "", "override the strategy file model")
	backtestCmd.Flags().IntVar(&backtestMaxWindows, "max-windows", -1, "override the window limit (0 = unlimited)")
}

// stageRun is what a single stage command works with
type stageRun struct {
	app   *app
	runID string
	o     *brain.Orchestrator
	in    *brain.Inputs
}

// stage runs fn with an orchestrator and loaded inputs under a fresh run id
func stage(title string, fn func(ctx context.Context, s *stageRun) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	runID := newRunID()
	PrintHeader(title, runID)

	err = a.withOrchestrator(ctx, runID, func(o *brain.Orchestrator) error {
		in, err := o.LoadInputs(ctx, runID)
		if err != nil {
			return err
		}
		return fn(ctx, &stageRun{app: a, runID: runID, o: o, in: in})
	})
	if err != nil {
		PrintError(err.Error())
		return err
	}
	return nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	return stage("S1 Statements", func(ctx context.Context, s *stageRun) error {
		normalized, aggs, err := s.o.Normalize(ctx, s.in.Facts)
		if err != nil {
			return err
		}
		if err := s0_data.WriteFacts(s.app.cfg.Pipeline.OutputDir(), NormalizedFile, normalized); err != nil {
			return err
		}
		PrintKeyValue("Facts", fmt.Sprintf("%d → %d", len(s.in.Facts), len(normalized)), 12)
		PrintKeyValue("Filings", fmt.Sprintf("%d", len(aggs.Keys)), 12)
		PrintKeyValue("Aggregates", fmt.Sprintf("%d", len(aggs.Names())), 12)
		PrintSuccess("Normalized statements written to " + NormalizedFile)
		return nil
	})
}

func runIndicators(cmd *cobra.Command, args []string) error {
	return stage("S3 Fundamental indicators", func(ctx context.Context, s *stageRun) error {
		_, aggs, err := s.o.Normalize(ctx, s.in.Facts)
		if err != nil {
			return err
		}
		library, err := s.o.BuildFundamentals(ctx, aggs, s.in.Market.Prices)
		if err != nil {
			return err
		}
		if err := s.o.SaveIndicators(ctx, library); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("%d fundamental indicators saved", len(library)))
		return nil
	})
}

func runTechnical(cmd *cobra.Command, args []string) error {
	return stage("S3 Technical indicators", func(ctx context.Context, s *stageRun) error {
		library, err := s.o.BuildTechnical(ctx, s.in.Market)
		if err != nil {
			return err
		}
		if err := s.o.SaveIndicators(ctx, library); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("%d technical indicators saved", len(library)))
		return nil
	})
}

func runPremium(cmd *cobra.Command, args []string) error {
	return stage("S4 Risk premiums", func(ctx context.Context, s *stageRun) error {
		premiums, err := s.o.BuildPremiums(ctx, s.in.Market.Prices)
		if err != nil {
			return err
		}

		widths := []int{24, 12, 8}
		PrintTableHeader([]string{"Strategy", "Floor", "Months"}, widths)
		for _, p := range premiums {
			PrintTableRow([]string{p.Strategy, fmt.Sprintf("%.0f", p.Floor), fmt.Sprintf("%d", len(p.Rows))}, widths)
		}
		PrintSuccess(fmt.Sprintf("%d premium tables saved", len(premiums)))
		return nil
	})
}

func runBacktest(cmd *cobra.Command, args []string) error {
	return stage("S5 Walk-forward", func(ctx context.Context, s *stageRun) error {
		if backtestModel != "" {
			s.app.strategy.WalkForward.Model = backtestModel
		}
		if backtestMaxWindows >= 0 {
			s.app.strategy.WalkForward.MaxWindows = backtestMaxWindows
		}

		r, dir, err := s.o.RunWalkForward(ctx, s.runID, s.in.Market)
		if err != nil {
			return err
		}
		PrintBacktestSummary(report.Summarize(*r))
		if len(r.Failed) > 0 {
			PrintWarning(fmt.Sprintf("%d tickers failed: %v", len(r.Failed), r.Failed))
		}
		PrintSuccess("Report published to " + dir)
		return nil
	})
}
