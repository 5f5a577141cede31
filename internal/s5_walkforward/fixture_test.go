package s5_walkforward

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/forecast"
)

var start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time {
	return start.AddDate(0, 0, i)
}

// market builds days consecutive daily bars per ticker plus a rising index
// and a single CDI print on the first day
func market(days int, tickers ...string) Inputs {
	var in Inputs
	for i := 0; i < days; i++ {
		in.Index = append(in.Index, contracts.IndexBar{Date: day(i), Close: 100 + float64(i)})
		for k, t := range tickers {
			in.Prices = append(in.Prices, contracts.PriceBar{
				Date:          day(i),
				Ticker:        t,
				Close:         10 + float64((i+k)%7),
				AdjustedClose: 10 + float64((i+k)%7),
				Volume:        1e6 + float64(k),
			})
		}
	}
	in.CDI = []contracts.RateBar{{Date: day(0), Return: 0.0001}}
	return in
}

// spy wraps the majority baseline and records every frame it sees
type spy struct {
	forecast.Majority

	mu     sync.Mutex
	trains []forecast.TrainingFrame
	fail   func(frame forecast.TrainingFrame) bool
}

func (s *spy) Name() string { return "spy" }

func (s *spy) Train(ctx context.Context, frame forecast.TrainingFrame) (forecast.Model, error) {
	if s.fail != nil && s.fail(frame) {
		panic("spy: induced failure")
	}
	s.mu.Lock()
	s.trains = append(s.trains, frame)
	s.mu.Unlock()
	return s.Majority.Train(ctx, frame)
}

func testConfig() Config {
	return Config{
		Workers:    2,
		Mode:       ModeFixed,
		Window:     WindowExpanding,
		TrainDays:  365,
		StepDays:   30,
		TestDays:   30,
		Horizon:    5,
		Lookback:   5,
		MaxWindows: 0,
	}
}
