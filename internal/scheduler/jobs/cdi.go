package jobs

import (
	"context"
	"time"

	"github.com/wonny/b3factor/backend/internal/s0_data/collector"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// CDIJob refreshes the CDI history ahead of the rebuild
type CDIJob struct {
	collector *collector.Collector
	from      time.Time
	schedule  string
	logger    *logger.Logger
}

// NewCDIJob creates a job collecting CDI from the given date until today
func NewCDIJob(c *collector.Collector, from time.Time, schedule string, log *logger.Logger) *CDIJob {
	return &CDIJob{
		collector: c,
		from:      from,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *CDIJob) Name() string {
	return "cdi_collection"
}

// Schedule returns the cron schedule
func (j *CDIJob) Schedule() string {
	return j.schedule
}

// Run executes the collection
func (j *CDIJob) Run(ctx context.Context) error {
	_, err := j.collector.CollectCDI(ctx, j.from, time.Now().UTC())
	return err
}
