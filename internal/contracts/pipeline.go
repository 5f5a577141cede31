package contracts

// Pipeline Stage definitions (SSOT)
// Every log line, snapshot and DB row uses these constants.
//
// Pipeline flow:
//   S0 → S1 → S2 → S3 → S4 → S5
//   Data  Statements  PointInTime  Indicators  Premium  WalkForward

// Stage represents a pipeline stage
type Stage string

const (
	// StageData S0: input loading and quality gate
	// Location: internal/s0_data/
	StageData Stage = "S0_DATA"

	// StageStatements S1: statement normalization and aggregates
	// Location: internal/s1_statements/
	StageStatements Stage = "S1_STATEMENTS"

	// StagePointInTime S2: asof joins and daily expansion
	// Location: internal/s2_pointintime/
	StagePointInTime Stage = "S2_POINT_IN_TIME"

	// StageIndicators S3: fundamental, technical and market indicators
	// Location: internal/s3_indicators/
	StageIndicators Stage = "S3_INDICATORS"

	// StagePremium S4: quartile portfolios and risk premiums
	// Location: internal/s4_premium/
	StagePremium Stage = "S4_PREMIUM"

	// StageWalkForward S5: walk-forward model backtest
	// Location: internal/s5_walkforward/
	StageWalkForward Stage = "S5_WALK_FORWARD"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageData:
		return "S0"
	case StageStatements:
		return "S1"
	case StagePointInTime:
		return "S2"
	case StageIndicators:
		return "S3"
	case StagePremium:
		return "S4"
	case StageWalkForward:
		return "S5"
	default:
		return "UNKNOWN"
	}
}

// Description returns a human readable description of the stage
func (s Stage) Description() string {
	switch s {
	case StageData:
		return "input loading/quality gate"
	case StageStatements:
		return "statement normalization"
	case StagePointInTime:
		return "point-in-time alignment"
	case StageIndicators:
		return "indicator library"
	case StagePremium:
		return "risk premium portfolios"
	case StageWalkForward:
		return "walk-forward backtest"
	default:
		return "unknown"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageData,
		StageStatements,
		StagePointInTime,
		StageIndicators,
		StagePremium,
		StageWalkForward,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// PipelineResult represents the result of a pipeline stage execution
type PipelineResult struct {
	Stage       Stage                  `json:"stage"`
	Success     bool                   `json:"success"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	Duration    int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// RunSummary records every stage result of one pipeline run
type RunSummary struct {
	RunID     string           `json:"run_id"`
	StartedAt int64            `json:"started_at"`
	Results   []PipelineResult `json:"results"`
}
