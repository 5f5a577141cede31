package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wonny/b3factor/backend/internal/brain"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// Pipeline runs one full rebuild under runID
type Pipeline func(ctx context.Context, runID string) (*brain.RunResult, error)

// RebuildJob regenerates the indicator library, premiums and backtest
// ⭐ SSOT: scheduled rebuild
type RebuildJob struct {
	pipeline Pipeline
	schedule string
	logger   *logger.Logger
}

// NewRebuildJob creates a new rebuild job
func NewRebuildJob(pipeline Pipeline, schedule string, log *logger.Logger) *RebuildJob {
	return &RebuildJob{
		pipeline: pipeline,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RebuildJob) Name() string {
	return "factor_rebuild"
}

// Schedule returns the cron schedule
func (j *RebuildJob) Schedule() string {
	return j.schedule
}

// Run executes one rebuild with a fresh run id
func (j *RebuildJob) Run(ctx context.Context) error {
	runID := uuid.NewString()
	j.logger.WithField("run_id", runID).Info("Starting scheduled rebuild")

	result, err := j.pipeline(ctx, runID)
	if err != nil {
		return fmt.Errorf("rebuild %s: %w", runID, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":     runID,
		"indicators": len(result.Indicators),
		"premiums":   len(result.Premiums),
		"duration":   result.Duration.String(),
	}).Info("Scheduled rebuild completed")

	return nil
}
