package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/guregu/null/v6"
)

// LogisticConfig holds the baseline model hyperparameters
type LogisticConfig struct {
	Iterations   int
	LearningRate float64
	L2           float64

	// ShrinkK pulls class mean targets toward the overall mean: n/(n+K)
	ShrinkK int
}

// DefaultLogisticConfig returns the standard hyperparameters
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		Iterations:   300,
		LearningRate: 0.1,
		L2:           0.01,
		ShrinkK:      30,
	}
}

// Logistic is a standardized logistic regression on the signal with a
// shrunk class mean regression head
type Logistic struct {
	config LogisticConfig
}

// NewLogistic creates the baseline forecaster
func NewLogistic(config LogisticConfig) *Logistic {
	return &Logistic{config: config}
}

// Name implements Forecaster
func (l *Logistic) Name() string { return "logistic" }

type logisticModel struct {
	features []string
	means    []float64
	scales   []float64
	weights  []float64
	bias     float64

	classMean  [2]float64
	classCount [2]int
	globalMean float64
	shrinkK    int
}

func (m *logisticModel) Name() string { return "logistic" }

// Train fits the model with batch gradient descent
func (l *Logistic) Train(ctx context.Context, frame TrainingFrame) (Model, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	n, k := frame.Len(), len(frame.Features)
	m := &logisticModel{
		features: append([]string(nil), frame.Features...),
		means:    make([]float64, k),
		scales:   make([]float64, k),
		weights:  make([]float64, k),
		shrinkK:  l.config.ShrinkK,
	}

	for j := 0; j < k; j++ {
		sum, sq := 0.0, 0.0
		for _, r := range frame.Rows {
			if math.IsNaN(r[j]) || math.IsInf(r[j], 0) {
				return nil, fmt.Errorf("feature %s has non-finite values", frame.Features[j])
			}
			sum += r[j]
		}
		m.means[j] = sum / float64(n)
		for _, r := range frame.Rows {
			sq += (r[j] - m.means[j]) * (r[j] - m.means[j])
		}
		m.scales[j] = math.Sqrt(sq / float64(n))
		if m.scales[j] == 0 {
			m.scales[j] = 1
		}
	}

	x := make([][]float64, n)
	y := make([]float64, n)
	for i, r := range frame.Rows {
		x[i] = m.standardize(r)
		if frame.Signals[i] {
			y[i] = 1
		}
	}

	grad := make([]float64, k)
	for it := 0; it < l.config.Iterations; it++ {
		if it%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0
		for i := range x {
			diff := m.probability(x[i]) - y[i]
			for j := range grad {
				grad[j] += diff * x[i][j]
			}
			gradBias += diff
		}
		for j := range m.weights {
			m.weights[j] -= l.config.LearningRate * (grad[j]/float64(n) + l.config.L2*m.weights[j])
		}
		m.bias -= l.config.LearningRate * gradBias / float64(n)
	}

	var sums [2]float64
	total := 0.0
	for i, t := range frame.Targets {
		c := 0
		if frame.Signals[i] {
			c = 1
		}
		sums[c] += t
		m.classCount[c]++
		total += t
	}
	m.globalMean = total / float64(n)
	for c := range sums {
		if m.classCount[c] > 0 {
			m.classMean[c] = sums[c] / float64(m.classCount[c])
		}
	}

	return m, nil
}

// Predict scores every non-context row
func (l *Logistic) Predict(ctx context.Context, model Model, frame Frame) ([]Prediction, error) {
	m, ok := model.(*logisticModel)
	if !ok {
		return nil, fmt.Errorf("logistic: unexpected model %s", model.Name())
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if !sameColumns(m.features, frame.Features) {
		return nil, ErrFeatureMismatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Prediction, 0, frame.Len()-frame.Context)
	for i := frame.Context; i < frame.Len(); i++ {
		p := m.probability(m.standardize(frame.Rows[i]))
		c := 0
		if p > 0.5 {
			c = 1
		}
		out = append(out, Prediction{
			Date:        frame.Dates[i],
			Probability: p,
			Return:      null.FloatFrom(shrink(m.classMean[c], m.globalMean, m.classCount[c], m.shrinkK)),
		})
	}
	return out, nil
}

func (m *logisticModel) standardize(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - m.means[j]) / m.scales[j]
	}
	return out
}

func (m *logisticModel) probability(x []float64) float64 {
	z := m.bias
	for j, v := range x {
		z += m.weights[j] * v
	}
	return 1 / (1 + math.Exp(-z))
}

// shrink blends a sample mean with the prior mean by n/(n+K)
func shrink(sampleMean, priorMean float64, n, k int) float64 {
	if n+k == 0 {
		return priorMean
	}
	w := float64(n) / float64(n+k)
	return w*sampleMean + (1-w)*priorMean
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
