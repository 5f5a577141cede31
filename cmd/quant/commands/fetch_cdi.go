package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/external/bcb"
	"github.com/wonny/b3factor/backend/internal/s0_data"
	"github.com/wonny/b3factor/backend/internal/s0_data/collector"
	"github.com/wonny/b3factor/backend/pkg/config"
	"github.com/wonny/b3factor/backend/pkg/httputil"
)

// cdiHistoryStart is the default start of the CDI history
var cdiHistoryStart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// fetchCDICmd represents the fetch-cdi command
var fetchCDICmd = &cobra.Command{
	Use:   "fetch-cdi",
	Short: "Download the CDI history",
	Long: `Downloads the daily CDI rate from the Banco Central SGS API (series 12)
and replaces the CDI input: cdi.csv for the CSV source, market.cdi_rates
for the PostgreSQL source.

Example:
  go run ./cmd/quant fetch-cdi
  go run ./cmd/quant fetch-cdi --from 2010-01-01 --to 2024-12-31`,
	RunE: runFetchCDI,
}

var (
	fetchFrom string
	fetchTo   string
)

func init() {
	rootCmd.AddCommand(fetchCDICmd)

	fetchCDICmd.Flags().StringVar(&fetchFrom, "from", contracts.FormatDate(cdiHistoryStart), "start date (YYYY-MM-DD)")
	fetchCDICmd.Flags().StringVar(&fetchTo, "to", "", "end date (YYYY-MM-DD, default today)")
}

// cdiCollector wires the BCB client to the configured input side
func (a *app) cdiCollector() (*collector.Collector, error) {
	httpClient := httputil.New(a.log, a.cfg.BCB.Timeout).WithRateLimit(a.cfg.BCB.RequestsPerSec)
	client := bcb.NewClient(httpClient, a.cfg.BCB.BaseURL, a.log)

	var sink collector.RateSink
	switch a.cfg.Pipeline.InputSource {
	case config.SourcePostgres:
		sink = s0_data.NewPostgresSource(a.pool())
	case config.SourceCSV:
		sink = collector.CSVSink{Dir: a.cfg.Pipeline.InputDir()}
	default:
		return nil, fmt.Errorf("unknown input source %q", a.cfg.Pipeline.InputSource)
	}
	return collector.NewCollector(client, sink, a.log), nil
}

func runFetchCDI(cmd *cobra.Command, args []string) error {
	from, err := contracts.ParseDate(fetchFrom)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to := contracts.Day(time.Now().UTC())
	if fetchTo != "" {
		if to, err = contracts.ParseDate(fetchTo); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	col, err := a.cdiCollector()
	if err != nil {
		return err
	}

	result, err := col.CollectCDI(ctx, from, to)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", contracts.FormatDate(from), contracts.FormatDate(to)), 8)
	PrintKeyValue("Rows", fmt.Sprintf("%d", result.Rows), 8)
	PrintSuccess(fmt.Sprintf("CDI history collected in %s", result.Duration.Round(time.Millisecond)))
	return nil
}
