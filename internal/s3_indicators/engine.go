package s3_indicators

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/s1_statements"
	"github.com/wonny/b3factor/backend/internal/s2_pointintime"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// Config holds indicator engine options
type Config struct {
	Workers int

	// Expand controls the validity of each ticker's last disclosure
	Expand s2_pointintime.ExpandOptions
}

// Engine computes the fundamental ratio library
type Engine struct {
	config Config
	ratios []Ratio
	logger *logger.Logger
}

// NewEngine creates an engine over the full ratio registry
func NewEngine(config Config, log *logger.Logger) *Engine {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Engine{
		config: config,
		ratios: Registry(),
		logger: log.WithComponent("s3_indicators"),
	}
}

// Compute evaluates every ratio for every filing matched to a price.
// The result holds one disclosure level series per ratio name, each ordered
// like joined. Values are finite or null.
// ⭐ SSOT: S3 fundamental ratio computation
func (e *Engine) Compute(ctx context.Context, aggs *s1_statements.Aggregates, joined []s2_pointintime.JoinedKey) (map[string][]contracts.DisclosurePoint, error) {
	inputs := make([]Inputs, len(joined))
	for i, j := range joined {
		inputs[i] = NewInputs(aggs, j.Key, j.Close)
	}

	series := make([][]contracts.DisclosurePoint, len(e.ratios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for i, r := range e.ratios {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			series[i] = evaluate(r, inputs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute ratios: %w", err)
	}

	out := make(map[string][]contracts.DisclosurePoint, len(e.ratios))
	for i, r := range e.ratios {
		out[r.Name] = series[i]
		if len(inputs) > 0 && !anyValid(series[i]) {
			e.logger.WarnOnce("empty_ratio:"+r.Name, "Ratio "+r.Name+" is null for every filing")
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"filings": len(joined),
		"ratios":  len(e.ratios),
	}).Info("Fundamental ratios computed")

	return out, nil
}

func evaluate(r Ratio, inputs []Inputs) []contracts.DisclosurePoint {
	points := make([]contracts.DisclosurePoint, len(inputs))
	for i, in := range inputs {
		v := r.Func(in)
		if v.Valid {
			v = Finite(v.Float64)
		}
		points[i] = contracts.DisclosurePoint{
			ReportDate:     in.Key.ReportDate,
			DisclosureDate: in.Key.DisclosureDate,
			Ticker:         in.Key.Ticker,
			Value:          v,
		}
	}
	return points
}

func anyValid(points []contracts.DisclosurePoint) bool {
	for _, p := range points {
		if p.Value.Valid {
			return true
		}
	}
	return false
}

// ExpandAll expands every disclosure level series to daily validity.
// Series are returned sorted by name.
func (e *Engine) ExpandAll(results map[string][]contracts.DisclosurePoint) []contracts.IndicatorSeries {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]contracts.IndicatorSeries, 0, len(names))
	for _, name := range names {
		out = append(out, contracts.IndicatorSeries{
			Name:   name,
			Points: s2_pointintime.ExpandToDaily(results[name], e.config.Expand),
		})
	}
	return out
}
