package strategyconfig

import (
	"fmt"
	"regexp"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/forecast"
)

// ValidationError is a fatal configuration error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap classifies every validation error as a fatal configuration error
func (e ValidationError) Unwrap() error {
	return contracts.ErrFatalConfiguration
}

// Warning is a non-fatal recommendation
type Warning struct {
	Code    string
	Message string
}

// strategy names become file names
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.ConfigID == "" {
		return ValidationError{"meta.config_id", "required"}
	}

	// === Technical ===
	t := cfg.Technical
	for field, v := range map[string]int{
		"technical.volume_window": t.VolumeWindow,
		"technical.vol_window":    t.VolWindow,
		"technical.short_ma":      t.ShortMA,
		"technical.long_ma":       t.LongMA,
		"technical.rsi_period":    t.RSIPeriod,
		"technical.beta_window":   t.BetaWindow,
	} {
		if v < 2 {
			return ValidationError{field, "must be >= 2"}
		}
	}
	if t.ShortMA >= t.LongMA {
		return ValidationError{"technical", "short_ma must be < long_ma"}
	}
	for i, m := range t.MomentumMonths {
		if m < 1 {
			return ValidationError{fmt.Sprintf("technical.momentum_months[%d]", i), "must be >= 1"}
		}
	}

	// === Premium ===
	if cfg.Premium.VolumeIndicator == "" {
		return ValidationError{"premium.volume_indicator", "required"}
	}
	if cfg.Premium.GraceMonths < 0 {
		return ValidationError{"premium.grace_months", "must be >= 0"}
	}
	names := make(map[string]bool)
	for i, s := range cfg.Premium.Strategies {
		field := fmt.Sprintf("premium.strategies[%d]", i)
		if !namePattern.MatchString(s.Name) {
			return ValidationError{field + ".name", "must match " + namePattern.String()}
		}
		if names[s.Name] {
			return ValidationError{field + ".name", "duplicate strategy " + s.Name}
		}
		names[s.Name] = true

		if len(s.Criteria) == 0 {
			return ValidationError{field + ".criteria", "required"}
		}
		for j, c := range s.Criteria {
			cfield := fmt.Sprintf("%s.criteria[%d]", field, j)
			if c.Indicator == "" {
				return ValidationError{cfield + ".indicator", "required"}
			}
			if c.Direction != contracts.Ascending && c.Direction != contracts.Descending {
				return ValidationError{cfield + ".direction", "must be ascending or descending"}
			}
			if c.Weight < 0 {
				return ValidationError{cfield + ".weight", "must be >= 0"}
			}
		}

		floors := make(map[float64]bool)
		for j, f := range s.Floors {
			if f < 0 {
				return ValidationError{fmt.Sprintf("%s.liquidity_floors[%d]", field, j), "must be >= 0"}
			}
			if floors[f] {
				return ValidationError{fmt.Sprintf("%s.liquidity_floors[%d]", field, j), "duplicate floor"}
			}
			floors[f] = true
		}
	}

	// === WalkForward ===
	w := cfg.WalkForward
	if !w.Enabled {
		return nil
	}
	if _, err := forecast.New(w.Model); err != nil {
		return ValidationError{"walk_forward.model", err.Error()}
	}
	switch w.Mode {
	case "fixed":
		if w.TrainDays <= 0 {
			return ValidationError{"walk_forward.train_days", "must be > 0"}
		}
	case "holdout":
		if w.HoldoutDays <= 0 {
			return ValidationError{"walk_forward.holdout_days", "must be > 0"}
		}
	default:
		return ValidationError{"walk_forward.mode", "must be fixed or holdout"}
	}
	if w.Window != "expanding" && w.Window != "rolling" {
		return ValidationError{"walk_forward.window", "must be expanding or rolling"}
	}
	if w.StepDays <= 0 {
		return ValidationError{"walk_forward.step_days", "must be > 0"}
	}
	if w.TestDays < 0 {
		return ValidationError{"walk_forward.test_days", "must be >= 0"}
	}
	if w.MaxWindows < 0 {
		return ValidationError{"walk_forward.max_windows", "must be >= 0"}
	}
	if w.Horizon < 1 {
		return ValidationError{"walk_forward.horizon", "must be >= 1"}
	}
	if w.Lookback < 0 {
		return ValidationError{"walk_forward.lookback", "must be >= 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if len(cfg.Premium.Strategies) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_STRATEGIES",
			Message: "no premium strategies configured, premium tables will not be built",
		})
	}

	for _, s := range cfg.Premium.Strategies {
		total := 0.0
		for _, c := range s.Criteria {
			total += c.Weight
		}
		if total == 0 {
			warnings = append(warnings, Warning{
				Code:    "EQUAL_WEIGHTS",
				Message: fmt.Sprintf("strategy %s has no weights, every criterion counts once", s.Name),
			})
		}
	}

	w := cfg.WalkForward
	if w.Enabled {
		if w.Mode == "fixed" && w.TrainDays < 365 {
			warnings = append(warnings, Warning{
				Code:    "SHORT_TRAINING",
				Message: fmt.Sprintf("train_days=%d is shorter than one year", w.TrainDays),
			})
		}
		if w.TestDays > 0 && w.TestDays < w.StepDays {
			warnings = append(warnings, Warning{
				Code:    "GAPPED_WINDOWS",
				Message: fmt.Sprintf("test_days=%d < step_days=%d leaves untested days", w.TestDays, w.StepDays),
			})
		}
	}

	return warnings
}
