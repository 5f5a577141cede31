package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
)

var (
	// ErrEmptyFrame is returned when training data has no rows
	ErrEmptyFrame = errors.New("empty training frame")

	// ErrFeatureMismatch is returned when Predict gets other columns than Train
	ErrFeatureMismatch = errors.New("feature columns differ from training")
)

// Frame is a feature matrix with one row per date, oldest first.
// The first Context rows are feature history only and get no prediction.
type Frame struct {
	Dates    []time.Time
	Features []string
	Rows     [][]float64
	Context  int
}

// Len returns the number of rows
func (f Frame) Len() int {
	return len(f.Rows)
}

// Validate checks the frame shape
func (f Frame) Validate() error {
	if len(f.Dates) != len(f.Rows) {
		return fmt.Errorf("frame has %d dates for %d rows", len(f.Dates), len(f.Rows))
	}
	if f.Context < 0 || f.Context > len(f.Rows) {
		return fmt.Errorf("frame context %d out of range", f.Context)
	}
	for i, r := range f.Rows {
		if len(r) != len(f.Features) {
			return fmt.Errorf("row %d has %d values for %d features", i, len(r), len(f.Features))
		}
	}
	return nil
}

// TrainingFrame is a frame with realized labels per row
type TrainingFrame struct {
	Frame
	Signals []bool    // price higher after the horizon
	Targets []float64 // realized change over the horizon, in percent
}

// Validate checks the frame and label shapes
func (f TrainingFrame) Validate() error {
	if err := f.Frame.Validate(); err != nil {
		return err
	}
	if len(f.Signals) != len(f.Rows) || len(f.Targets) != len(f.Rows) {
		return fmt.Errorf("labels do not match %d rows", len(f.Rows))
	}
	if len(f.Rows) == 0 {
		return ErrEmptyFrame
	}
	return nil
}

// Prediction is the model output for one row
type Prediction struct {
	Date        time.Time
	Probability float64    // probability of an up move
	Return      null.Float // predicted target, null when the model has no regression head
}

// Up reports the predicted direction
func (p Prediction) Up() bool {
	return p.Probability > 0.5
}

// Model is an opaque trained state
type Model interface {
	Name() string
}

// Forecaster trains and applies a signal model. Implementations must be safe
// for concurrent use across tickers.
type Forecaster interface {
	Name() string
	Train(ctx context.Context, frame TrainingFrame) (Model, error)
	Predict(ctx context.Context, model Model, frame Frame) ([]Prediction, error)
}
