package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/b3factor/backend/internal/api"
	"github.com/wonny/b3factor/backend/internal/api/handlers"
	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/storage"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only API server",
	Long: `Serves the stored outputs over HTTP.

Endpoints:
  GET /health                    - Health check
  GET /api/data/quality          - latest input quality snapshot (PostgreSQL)
  GET /api/indicators            - indicator names
  GET /api/indicators/{name}     - indicator table (?ticker=&from=&to=)
  GET /api/premiums              - configured strategies and floors
  GET /api/premiums/{strategy}   - premium table (?floor=&from=&to=)

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	store, err := storage.Open(a.cfg, a.db, a.log)
	if err != nil {
		return err
	}

	var qualityReader handlers.QualityReader
	if repo := a.qualityRepo(); repo != nil {
		qualityReader = repo
	}

	router := api.NewRouter(api.Handlers{
		Data:       handlers.NewDataHandler(qualityReader, a.log),
		Indicators: handlers.NewIndicatorHandler(store, a.log),
		Premiums:   handlers.NewPremiumHandler(store, a.strategy.Premium.Strategies, a.log),
	}, a.log)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	return storage.Scoped(ctx, store, func(_ contracts.Store) error {
		return api.New(a.cfg, a.log, router).Run(ctx, 30*time.Second)
	})
}
