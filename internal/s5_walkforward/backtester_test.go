package s5_walkforward

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/forecast"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "testing", Testing.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestRun_WindowsAdvanceByStep(t *testing.T) {
	bt := NewBacktester(testConfig(), forecast.Majority{}, logger.Nop())

	report, err := bt.Run(context.Background(), market(600, "PETR4"))
	require.NoError(t, err)
	assert.Equal(t, "majority", report.Model)
	assert.Empty(t, report.Failed)
	require.Greater(t, len(report.Rows), 3)

	// first row is day 1, training spans 365 days
	assert.Equal(t, day(366), report.Rows[0].TestStart)
	for i, row := range report.Rows {
		assert.Equal(t, "PETR4", row.Ticker)
		assert.Equal(t, row.TestStart.AddDate(0, 0, 30), row.TestEnd)
		assert.Positive(t, row.Samples)
		assert.True(t, row.MAE.Valid)
		if i > 0 {
			assert.Equal(t, report.Rows[i-1].TestStart.AddDate(0, 0, 30), row.TestStart)
		}
	}

	last := report.Rows[len(report.Rows)-1]
	assert.False(t, last.TestStart.After(day(599)))
}

func TestRun_TrainingLabelsEndBeforeTest(t *testing.T) {
	model := &spy{}
	cfg := testConfig()
	cfg.Workers = 1
	bt := NewBacktester(cfg, model, logger.Nop())

	report, err := bt.Run(context.Background(), market(600, "PETR4"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(model.trains), len(report.Rows))

	for i, row := range report.Rows {
		frame := model.trains[i]
		lastTrain := frame.Dates[frame.Len()-1]
		// horizon 5 on daily rows: the last label lands the day before the test
		assert.Equal(t, row.TestStart.AddDate(0, 0, -6), lastTrain)
		assert.Equal(t, day(1), frame.Dates[0], "expanding window keeps the first row")
	}
}

func TestRun_RollingWindow(t *testing.T) {
	model := &spy{}
	cfg := testConfig()
	cfg.Workers = 1
	cfg.Window = WindowRolling
	cfg.MaxWindows = 3
	bt := NewBacktester(cfg, model, logger.Nop())

	report, err := bt.Run(context.Background(), market(600, "PETR4"))
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	require.Len(t, model.trains, 3)

	for i, frame := range model.trains {
		assert.Equal(t, day(1).AddDate(0, 0, 30*i), frame.Dates[0])
	}
}

func TestRun_MaxWindowsCountsEvaluatedWindows(t *testing.T) {
	model := &spy{}
	cfg := testConfig()
	cfg.Workers = 1
	cfg.TrainDays = 3
	cfg.StepDays = 1
	cfg.MaxWindows = 2
	bt := NewBacktester(cfg, model, logger.Nop())

	report, err := bt.Run(context.Background(), market(200, "PETR4"))
	require.NoError(t, err)

	// the first three windows have no label realized before their test start
	require.Len(t, report.Rows, 2)
	require.Len(t, model.trains, 2)
	assert.Equal(t, day(7), report.Rows[0].TestStart)
	assert.Equal(t, day(8), report.Rows[1].TestStart)
}

func TestRun_HoldoutMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeHoldout
	cfg.HoldoutDays = 90
	bt := NewBacktester(cfg, forecast.Majority{}, logger.Nop())

	report, err := bt.Run(context.Background(), market(600, "PETR4"))
	require.NoError(t, err)
	require.NotEmpty(t, report.Rows)
	assert.Equal(t, day(599).AddDate(0, 0, -90), report.Rows[0].TestStart)
	assert.LessOrEqual(t, len(report.Rows), 3)
}

func TestRun_FailingTickerIsIsolated(t *testing.T) {
	cfg := testConfig()

	solo, err := NewBacktester(cfg, &spy{}, logger.Nop()).Run(context.Background(), market(600, "PETR4"))
	require.NoError(t, err)

	in := market(600, "PETR4", "VALE3")
	model := &spy{fail: func(frame forecast.TrainingFrame) bool {
		// VALE3 is the only ticker with volume 1e6+1
		return frame.Rows[0][0] == 1e6+1
	}}
	report, err := NewBacktester(cfg, model, logger.Nop()).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"VALE3"}, report.Failed)
	assert.Equal(t, solo.Rows, report.Rows)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bt := NewBacktester(testConfig(), forecast.Majority{}, logger.Nop())
	_, err := bt.Run(ctx, market(600, "PETR4", "VALE3"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_UnknownIndicator(t *testing.T) {
	cfg := testConfig()
	cfg.Indicators = []string{"p_l"}
	bt := NewBacktester(cfg, forecast.Majority{}, logger.Nop())

	_, err := bt.Run(context.Background(), market(10, "PETR4"))
	assert.ErrorIs(t, err, contracts.ErrFatalConfiguration)
}

func TestRun_ShortHistoryHasNoRows(t *testing.T) {
	bt := NewBacktester(testConfig(), forecast.Majority{}, logger.Nop())

	report, err := bt.Run(context.Background(), market(200, "PETR4"))
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assert.Empty(t, report.Failed)
}
