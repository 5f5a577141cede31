package contracts

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"
)

// BacktestRow scores one test window of one ticker
// ⭐ SSOT: S5 output row
type BacktestRow struct {
	Ticker        string     `json:"ticker"`
	TestStart     time.Time  `json:"test_window_start"`
	TestEnd       time.Time  `json:"test_window_end"`
	TrainAccuracy float64    `json:"train_accuracy"`
	Accuracy      float64    `json:"classification_accuracy"`
	MAE           null.Float `json:"mae"`
	RMSE          null.Float `json:"rmse"`
	Samples       int        `json:"samples"`
}

// BacktestReport is the aggregated result of a walk-forward run
type BacktestReport struct {
	RunID     string        `json:"run_id"`
	Model     string        `json:"model"`
	CreatedAt time.Time     `json:"created_at"`
	Rows      []BacktestRow `json:"rows"`
	Failed    []string      `json:"failed_tickers,omitempty"`
}

// SortRows orders rows by ticker, then test window start
func (r *BacktestReport) SortRows() {
	sort.SliceStable(r.Rows, func(i, j int) bool {
		if r.Rows[i].Ticker != r.Rows[j].Ticker {
			return r.Rows[i].Ticker < r.Rows[j].Ticker
		}
		return r.Rows[i].TestStart.Before(r.Rows[j].TestStart)
	})
}
