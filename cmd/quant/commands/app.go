package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/b3factor/backend/internal/brain"
	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/s0_data"
	"github.com/wonny/b3factor/backend/internal/s0_data/quality"
	"github.com/wonny/b3factor/backend/internal/storage"
	"github.com/wonny/b3factor/backend/internal/strategyconfig"
	"github.com/wonny/b3factor/backend/pkg/config"
	"github.com/wonny/b3factor/backend/pkg/database"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// RunsDir holds one configuration snapshot per run under the output directory
const RunsDir = "runs"

// app is the shared bootstrap of every pipeline command
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB // nil unless a PostgreSQL side is configured
	strategy *strategyconfig.Config
	raw      []byte
}

// newApp loads env config, the strategy file and, when needed, the database
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if strategyFile != "" {
		cfg.Pipeline.StrategyFile = strategyFile
	}

	log := logger.New(cfg)

	strategy, raw, err := strategyconfig.Load(cfg.Pipeline.StrategyFile)
	if err != nil {
		return nil, fmt.Errorf("load strategies %s: %w", cfg.Pipeline.StrategyFile, err)
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	a := &app{cfg: cfg, log: log, strategy: strategy, raw: raw}

	if cfg.UsesDatabase() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		log.Info("Connected to database")
	}

	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) pool() *pgxpool.Pool {
	if a.db == nil {
		return nil
	}
	return a.db.Pool
}

func (a *app) qualityRepo() *quality.Repository {
	if a.db == nil {
		return nil
	}
	return quality.NewRepository(a.db.Pool)
}

// withOrchestrator opens the source and the store for one run and closes
// both when fn returns
func (a *app) withOrchestrator(ctx context.Context, runID string, fn func(o *brain.Orchestrator) error) error {
	log := a.log.ForRun(runID)

	src, err := s0_data.NewSource(a.cfg.Pipeline, a.pool(), log)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := a.writeSnapshot(runID); err != nil {
		return err
	}

	return storage.WithStore(ctx, a.cfg, a.db, log, func(store contracts.Store) error {
		return fn(brain.NewOrchestrator(a.cfg, a.strategy, src, store, a.qualityRepo(), log))
	})
}

// runPipeline executes the full pipeline under runID
func (a *app) runPipeline(ctx context.Context, runID string, rc brain.RunConfig) (*brain.RunResult, error) {
	rc.RunID = runID
	var result *brain.RunResult
	err := a.withOrchestrator(ctx, runID, func(o *brain.Orchestrator) error {
		var err error
		result, err = o.Run(ctx, rc)
		return err
	})
	return result, err
}

// writeSnapshot records which configuration produced a run
func (a *app) writeSnapshot(runID string) error {
	snapshot, err := strategyconfig.NewRunSnapshot(a.strategy, a.raw, runID)
	if err != nil {
		return fmt.Errorf("snapshot config: %w", err)
	}

	dir := filepath.Join(a.cfg.Pipeline.OutputDir(), RunsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	a.log.WithFields(map[string]interface{}{
		"run_id":      runID,
		"config_id":   snapshot.ConfigID,
		"config_hash": snapshot.ConfigHash,
	}).Info("Run configured")

	return os.WriteFile(filepath.Join(dir, runID+".json"), data, 0o644)
}

func newRunID() string {
	return uuid.NewString()
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
