package forecast

import (
	"context"
	"fmt"

	"github.com/guregu/null/v6"
)

// Majority predicts the training up-rate for every row. It is the floor any
// learned model has to beat.
type Majority struct{}

type majorityModel struct {
	upRate     float64
	meanTarget float64
}

func (m *majorityModel) Name() string { return "majority" }

// Name implements Forecaster
func (Majority) Name() string { return "majority" }

// Train implements Forecaster
func (Majority) Train(ctx context.Context, frame TrainingFrame) (Model, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	up, sum := 0, 0.0
	for i, s := range frame.Signals {
		if s {
			up++
		}
		sum += frame.Targets[i]
	}
	n := float64(frame.Len())
	return &majorityModel{upRate: float64(up) / n, meanTarget: sum / n}, nil
}

// Predict implements Forecaster
func (Majority) Predict(ctx context.Context, model Model, frame Frame) ([]Prediction, error) {
	m, ok := model.(*majorityModel)
	if !ok {
		return nil, fmt.Errorf("majority: unexpected model %s", model.Name())
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	out := make([]Prediction, 0, frame.Len()-frame.Context)
	for i := frame.Context; i < frame.Len(); i++ {
		out = append(out, Prediction{Date: frame.Dates[i], Probability: m.upRate, Return: null.FloatFrom(m.meanTarget)})
	}
	return out, nil
}
