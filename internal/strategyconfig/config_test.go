package strategyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

const sample = `
meta:
  config_id: b3_factors
  version: "2"
premium:
  volume_indicator: median_volume_21
  strategies:
    - name: value
      criteria:
        - {indicator: ev_ebit, direction: ascending, weight: 2}
        - {indicator: roic, direction: descending, weight: 1}
      liquidity_floors: [0, 1000000]
    - name: momentum
      criteria:
        - {indicator: momentum_6m, direction: descending}
walk_forward:
  enabled: true
  model: logistic
  mode: fixed
  window: rolling
  train_days: 730
  step_days: 30
  test_days: 30
  horizon: 21
  lookback: 21
  indicators: [roe, ev_ebit]
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "b3_factors", cfg.Meta.ConfigID)
	require.Len(t, cfg.Premium.Strategies, 2)

	value, ok := cfg.Strategy("value")
	require.True(t, ok)
	assert.Equal(t, contracts.Ascending, value.Criteria[0].Direction)
	assert.Equal(t, 2.0, value.Criteria[0].Weight)
	assert.Equal(t, []float64{0, 1000000}, value.Floors)

	// omitted sections keep defaults
	assert.Equal(t, 21, cfg.Technical.VolumeWindow)
	assert.Equal(t, 2, cfg.Premium.GraceMonths)
	assert.Equal(t, "rolling", cfg.WalkForward.Window)

	assert.Equal(t, []string{"ev_ebit", "momentum_6m", "roe", "roic"}, cfg.Indicators())

	warnings := Warn(cfg)
	require.Len(t, warnings, 1)
	assert.Equal(t, "EQUAL_WEIGHTS", warnings[0].Code)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("meta:\n  config_id: x\n  strategy: typo\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing id", func(c *Config) { c.Meta.ConfigID = "" }, "meta.config_id"},
		{"bad ma", func(c *Config) { c.Technical.ShortMA = 50 }, "technical"},
		{"bad name", func(c *Config) { c.Premium.Strategies[0].Name = "Value Strategy" }, "premium.strategies[0].name"},
		{"duplicate", func(c *Config) { c.Premium.Strategies[1].Name = "value" }, "premium.strategies[1].name"},
		{"direction", func(c *Config) { c.Premium.Strategies[0].Criteria[0].Direction = "up" }, "premium.strategies[0].criteria[0].direction"},
		{"floor", func(c *Config) { c.Premium.Strategies[0].Floors = []float64{-1} }, "premium.strategies[0].liquidity_floors[0]"},
		{"model", func(c *Config) { c.WalkForward.Model = "lstm" }, "walk_forward.model"},
		{"mode", func(c *Config) { c.WalkForward.Mode = "sliding" }, "walk_forward.mode"},
		{"step", func(c *Config) { c.WalkForward.StepDays = 0 }, "walk_forward.step_days"},
		{"horizon", func(c *Config) { c.WalkForward.Horizon = 0 }, "walk_forward.horizon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(sample))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = Validate(cfg)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, contracts.ErrFatalConfiguration)
		})
	}
}

func TestValidate_DisabledWalkForwardIsNotChecked(t *testing.T) {
	cfg := Default()
	cfg.WalkForward.Mode = "anything"
	assert.NoError(t, Validate(cfg))
}

func TestHash(t *testing.T) {
	a, err := Parse([]byte(sample))
	require.NoError(t, err)
	b, err := Parse([]byte(sample))
	require.NoError(t, err)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, _ := Hash(b)
	assert.Len(t, ha, 64)
	assert.Equal(t, ha, hb)

	b.WalkForward.Horizon = 5
	hc, _ := Hash(b)
	assert.NotEqual(t, ha, hc)
}

func TestLoadAndSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, data, err := Load(path)
	require.NoError(t, err)

	snap, err := NewRunSnapshot(cfg, data, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, "b3_factors", snap.ConfigID)
	assert.Equal(t, sample, snap.ConfigYAML)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.WalkForward.Enabled = true
	cfg.WalkForward.TrainDays = 100
	cfg.WalkForward.TestDays = 10

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []string{"NO_STRATEGIES", "SHORT_TRAINING", "GAPPED_WINDOWS"}, codes)
}
