package strategyconfig

import (
	"sort"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// Config is the full run configuration file: factor strategies, premium
// options, technical windows and the walk-forward setup
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Statements  Statements  `yaml:"statements" json:"statements"`
	Technical   Technical   `yaml:"technical" json:"technical"`
	Premium     Premium     `yaml:"premium" json:"premium"`
	WalkForward WalkForward `yaml:"walk_forward" json:"walk_forward"`
}

// Meta identifies the configuration
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id"`
	Version  string `yaml:"version" json:"version"`
}

// Statements S1 options
type Statements struct {
	ZeroAsMissing bool `yaml:"zero_as_missing" json:"zero_as_missing"`
}

// Technical S3 technical indicator windows (trading days unless noted)
type Technical struct {
	VolumeWindow   int   `yaml:"volume_window" json:"volume_window"`
	MomentumMonths []int `yaml:"momentum_months" json:"momentum_months"`
	VolWindow      int   `yaml:"vol_window" json:"vol_window"`
	ShortMA        int   `yaml:"short_ma" json:"short_ma"`
	LongMA         int   `yaml:"long_ma" json:"long_ma"`
	RSIPeriod      int   `yaml:"rsi_period" json:"rsi_period"`
	BetaWindow     int   `yaml:"beta_window" json:"beta_window"`
}

// Premium S4 options
type Premium struct {
	VolumeIndicator string               `yaml:"volume_indicator" json:"volume_indicator"`
	GraceMonths     int                  `yaml:"grace_months" json:"grace_months"`
	Strategies      []contracts.Strategy `yaml:"strategies" json:"strategies"`
}

// WalkForward S5 options
type WalkForward struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Model       string   `yaml:"model" json:"model"`
	Mode        string   `yaml:"mode" json:"mode"`     // fixed | holdout
	Window      string   `yaml:"window" json:"window"` // expanding | rolling
	TrainDays   int      `yaml:"train_days" json:"train_days"`
	HoldoutDays int      `yaml:"holdout_days" json:"holdout_days"`
	StepDays    int      `yaml:"step_days" json:"step_days"`
	TestDays    int      `yaml:"test_days" json:"test_days"`
	MaxWindows  int      `yaml:"max_windows" json:"max_windows"`
	Horizon     int      `yaml:"horizon" json:"horizon"`
	Lookback    int      `yaml:"lookback" json:"lookback"`
	Indicators  []string `yaml:"indicators" json:"indicators"`
}

// Indicators returns every indicator name the configuration reads, sorted
// and without duplicates
func (c *Config) Indicators() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, s := range c.Premium.Strategies {
		for _, cr := range s.Criteria {
			add(cr.Indicator)
		}
	}
	if c.WalkForward.Enabled {
		for _, name := range c.WalkForward.Indicators {
			add(name)
		}
	}
	sort.Strings(out)
	return out
}

// Strategy returns the strategy by name
func (c *Config) Strategy(name string) (contracts.Strategy, bool) {
	for _, s := range c.Premium.Strategies {
		if s.Name == name {
			return s, true
		}
	}
	return contracts.Strategy{}, false
}
