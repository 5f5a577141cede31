package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/b3factor/backend/internal/brain"
	"github.com/wonny/b3factor/backend/internal/scheduler"
	"github.com/wonny/b3factor/backend/internal/scheduler/jobs"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on a cron schedule",
	Long: `Starts the scheduler and rebuilds every output on REBUILD_SCHEDULE
(cron with seconds, default weekdays at 21:00). A rebuild still running when
the next one is due is skipped.

Jobs:
  factor_rebuild  - full pipeline with a fresh run id
  cdi_collection  - CDI refresh from the Banco Central (--with-cdi)

Example:
  go run ./cmd/quant schedule
  go run ./cmd/quant schedule --with-cdi --cdi-schedule "0 0 20 * * 1-5"
  go run ./cmd/quant schedule --run-now`,
	RunE: runSchedule,
}

var (
	scheduleWithCDI     bool
	scheduleCDISchedule string
	scheduleRunNow      bool
)

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&scheduleWithCDI, "with-cdi", false, "also refresh CDI before each rebuild")
	scheduleCmd.Flags().StringVar(&scheduleCDISchedule, "cdi-schedule", "0 30 20 * * 1-5", "CDI refresh schedule")
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "run one rebuild immediately")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	s := scheduler.New(a.log)

	rebuild := jobs.NewRebuildJob(func(ctx context.Context, runID string) (*brain.RunResult, error) {
		return a.runPipeline(ctx, runID, brain.RunConfig{})
	}, a.cfg.Pipeline.Schedule, a.log)
	if err := s.AddJob(rebuild); err != nil {
		return err
	}

	if scheduleWithCDI {
		col, err := a.cdiCollector()
		if err != nil {
			return err
		}
		if err := s.AddJob(jobs.NewCDIJob(col, cdiHistoryStart, scheduleCDISchedule, a.log)); err != nil {
			return err
		}
	}

	s.Start()
	defer s.Stop()

	fmt.Println("\nScheduled jobs:")
	for name, st := range s.GetJobStats() {
		next := "-"
		if st.NextRun != nil {
			next = st.NextRun.Format(time.RFC3339)
		}
		PrintKeyValue(name, fmt.Sprintf("%s (next %s)", st.Schedule, next), 16)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if scheduleRunNow {
		if _, err := s.RunJob(ctx, rebuild.Name()); err != nil {
			return err
		}
	}

	<-ctx.Done()
	return nil
}
