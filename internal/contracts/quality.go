package contracts

import "time"

// DataQualitySnapshot summarizes input coverage passed from S0 to S1
// ⭐ SSOT: S0 → S1 data quality
type DataQualitySnapshot struct {
	Date         time.Time          `json:"date"`
	TotalTickers int                `json:"total_tickers"`
	ValidTickers int                `json:"valid_tickers"`
	Coverage     map[string]float64 `json:"coverage"`
	QualityScore float64            `json:"quality_score"` // 0.0 ~ 1.0
	Passed       bool               `json:"passed"`
	Warnings     []string           `json:"warnings,omitempty"`
}

// IsValid checks if the snapshot meets minimum requirements
func (d *DataQualitySnapshot) IsValid() bool {
	return d.QualityScore >= 0.5 && d.ValidTickers > 0
}

// CoverageRate returns the average coverage rate across all inputs
func (d *DataQualitySnapshot) CoverageRate() float64 {
	if len(d.Coverage) == 0 {
		return 0.0
	}

	total := 0.0
	for _, rate := range d.Coverage {
		total += rate
	}

	return total / float64(len(d.Coverage))
}
