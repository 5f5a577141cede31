package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/brain"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

func TestRebuildJob_FreshRunIDs(t *testing.T) {
	var ids []string
	job := NewRebuildJob(func(ctx context.Context, runID string) (*brain.RunResult, error) {
		ids = append(ids, runID)
		return &brain.RunResult{RunID: runID, Success: true}, nil
	}, "@daily", logger.Nop())

	assert.Equal(t, "factor_rebuild", job.Name())
	assert.Equal(t, "@daily", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	_, err := uuid.Parse(ids[0])
	assert.NoError(t, err)
}

func TestRebuildJob_PropagatesFailure(t *testing.T) {
	boom := errors.New("quality gate failed")
	job := NewRebuildJob(func(ctx context.Context, runID string) (*brain.RunResult, error) {
		return &brain.RunResult{RunID: runID}, boom
	}, "@daily", logger.Nop())

	assert.ErrorIs(t, job.Run(context.Background()), boom)
}
