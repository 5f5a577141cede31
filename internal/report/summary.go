package report

import (
	"math"
	"sort"

	"github.com/guregu/null/v6"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// TickerSummary averages the windows of one ticker
type TickerSummary struct {
	Ticker        string     `json:"ticker"`
	Windows       int        `json:"windows"`
	Samples       int        `json:"samples"`
	TrainAccuracy float64    `json:"train_accuracy"`
	Accuracy      float64    `json:"classification_accuracy"`
	MAE           null.Float `json:"mae"`
	RMSE          null.Float `json:"rmse"`
}

// Summarize returns one summary per ticker, sorted by ticker. Accuracy is
// weighted by window samples; MAE and RMSE average the windows that have one.
func Summarize(r contracts.BacktestReport) []TickerSummary {
	type acc struct {
		s        TickerSummary
		trainSum float64
		hitSum   float64
		maeSum   float64
		maeN     int
		rmseSq   float64
		rmseN    int
	}
	byTicker := make(map[string]*acc)
	for _, row := range r.Rows {
		a, ok := byTicker[row.Ticker]
		if !ok {
			a = &acc{s: TickerSummary{Ticker: row.Ticker}}
			byTicker[row.Ticker] = a
		}
		a.s.Windows++
		a.s.Samples += row.Samples
		a.trainSum += row.TrainAccuracy
		a.hitSum += row.Accuracy * float64(row.Samples)
		if row.MAE.Valid {
			a.maeSum += row.MAE.Float64
			a.maeN++
		}
		if row.RMSE.Valid {
			a.rmseSq += row.RMSE.Float64 * row.RMSE.Float64
			a.rmseN++
		}
	}

	out := make([]TickerSummary, 0, len(byTicker))
	for _, a := range byTicker {
		s := a.s
		s.TrainAccuracy = a.trainSum / float64(s.Windows)
		if s.Samples > 0 {
			s.Accuracy = a.hitSum / float64(s.Samples)
		}
		if a.maeN > 0 {
			s.MAE = null.FloatFrom(a.maeSum / float64(a.maeN))
		}
		if a.rmseN > 0 {
			s.RMSE = null.FloatFrom(math.Sqrt(a.rmseSq / float64(a.rmseN)))
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
