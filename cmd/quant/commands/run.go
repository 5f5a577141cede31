package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/b3factor/backend/internal/brain"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline",
	Long: `Runs every stage in order and writes all outputs.

S0 → S1 → S2 → S3 → S4 → S5

- S0: input loading and quality gate
- S1: statement normalization and aggregates
- S2: point-in-time price join and daily validity
- S3: fundamental, technical and market indicators
- S4: risk premium quartile portfolios
- S5: walk-forward backtest (when enabled in the strategy file)

Example:
  go run ./cmd/quant run
  go run ./cmd/quant run --skip-backtest`,
	RunE: runPipeline,
}

var runSkipBacktest bool

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runSkipBacktest, "skip-backtest", false, "stop after the premium tables")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	runID := newRunID()
	PrintHeader("Full pipeline", runID)

	result, err := a.runPipeline(ctx, runID, brain.RunConfig{SkipWalkForward: runSkipBacktest})
	PrintRunResult(result)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("Run %s completed", runID))
	return nil
}
