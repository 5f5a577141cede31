package forecast

import (
	"math"

	"github.com/guregu/null/v6"
)

// Scores summarizes predictions against realized labels
type Scores struct {
	Accuracy float64
	MAE      null.Float
	RMSE     null.Float
	Samples  int
}

// Evaluate scores predictions row by row. Direction hits use probability
// > 0.5; MAE and RMSE use the rows with a predicted return and stay null
// without any.
func Evaluate(preds []Prediction, signals []bool, targets []float64) Scores {
	n := len(preds)
	if len(signals) < n {
		n = len(signals)
	}
	if n == 0 {
		return Scores{}
	}

	hits := 0
	var sumAbs, sumSq float64
	regressed := 0
	for i := 0; i < n; i++ {
		if preds[i].Up() == signals[i] {
			hits++
		}
		if preds[i].Return.Valid && i < len(targets) {
			e := preds[i].Return.Float64 - targets[i]
			sumAbs += math.Abs(e)
			sumSq += e * e
			regressed++
		}
	}

	s := Scores{Accuracy: float64(hits) / float64(n), Samples: n}
	if regressed > 0 {
		s.MAE = null.FloatFrom(sumAbs / float64(regressed))
		s.RMSE = null.FloatFrom(math.Sqrt(sumSq / float64(regressed)))
	}
	return s
}
