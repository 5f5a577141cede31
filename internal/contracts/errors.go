package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy. Only ErrFatalConfiguration and batch level I/O errors
// surface from a stage; the others are recovered into warnings and null or
// missing output rows.
var (
	// ErrFatalConfiguration: a required aggregate (EBIT) is wholly absent
	ErrFatalConfiguration = errors.New("fatal configuration error")

	// ErrMissingSecondaryData: inputs of an optional ratio are absent
	ErrMissingSecondaryData = errors.New("missing secondary data")

	// ErrNumericDegeneracy: zero denominator or non-finite result
	ErrNumericDegeneracy = errors.New("numeric degeneracy")

	// ErrPerTickerFailure: per-ticker computation failed
	ErrPerTickerFailure = errors.New("per-ticker failure")

	// ErrEmptyEligibleUniverse: fewer than four eligible tickers at a rebalance date
	ErrEmptyEligibleUniverse = errors.New("empty eligible universe")
)

// TickerError wraps a failure of one ticker inside a stage
type TickerError struct {
	Stage  Stage
	Ticker string
	Err    error
}

func (e *TickerError) Error() string {
	return fmt.Sprintf("%s: ticker %s: %v", e.Stage.ShortName(), e.Ticker, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the cause
func (e *TickerError) Unwrap() []error {
	return []error{ErrPerTickerFailure, e.Err}
}

// NewTickerError builds a TickerError
func NewTickerError(stage Stage, ticker string, err error) *TickerError {
	return &TickerError{Stage: stage, Ticker: ticker, Err: err}
}

// FatalConfigf formats an ErrFatalConfiguration
func FatalConfigf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFatalConfiguration, fmt.Sprintf(format, args...))
}

// RecoverTicker converts a panic inside per-ticker work into a TickerError.
// Use as: defer contracts.RecoverTicker(stage, ticker, &err)
func RecoverTicker(stage Stage, ticker string, err *error) {
	if r := recover(); r != nil {
		*err = NewTickerError(stage, ticker, fmt.Errorf("panic: %v", r))
	}
}
