package s1_statements

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// Config holds normalizer options
type Config struct {
	Workers int

	// ZeroAsMissing treats a reported 0 as "not reported" so that the
	// forward fill carries the previous figure over it
	ZeroAsMissing bool
}

// Normalizer turns raw statement facts into single-quarter, sign-normalized facts
type Normalizer struct {
	config Config
	logger *logger.Logger
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(config Config, log *logger.Logger) *Normalizer {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Normalizer{
		config: config,
		logger: log.WithComponent("s1_statements"),
	}
}

type groupKey struct {
	ticker  string
	account string
}

// Normalize applies forward fill, quarter isolation, absolute values and the
// depreciation de-accumulation to every (ticker, account) group.
// ⭐ SSOT: S1 statement normalization
func (n *Normalizer) Normalize(ctx context.Context, facts []contracts.StatementFact) ([]contracts.StatementFact, error) {
	groups := make(map[groupKey][]contracts.StatementFact)
	dropped := 0
	for _, f := range facts {
		account := strings.TrimSpace(f.Account)
		if !IsWhitelisted(account) {
			dropped++
			continue
		}
		f.Account = account
		f.ReportDate = contracts.Day(f.ReportDate)
		f.DisclosureDate = contracts.Day(f.DisclosureDate)
		if n.config.ZeroAsMissing && f.Value.Valid && f.Value.Float64 == 0 {
			f.Value = null.Float{}
		}
		k := groupKey{ticker: f.Ticker, account: account}
		groups[k] = append(groups[k], f)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ticker != keys[j].ticker {
			return keys[i].ticker < keys[j].ticker
		}
		return keys[i].account < keys[j].account
	})

	results := make([][]contracts.StatementFact, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.config.Workers)

	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := normalizeSafely(k, groups[k])
			if err != nil {
				n.logger.WithFields(map[string]interface{}{
					"ticker":  k.ticker,
					"account": k.account,
				}).WithError(err).Warn("Statement group failed, skipping")
				return nil
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normalize statements: %w", err)
	}

	normalized := make([]contracts.StatementFact, 0, len(facts))
	for _, r := range results {
		normalized = append(normalized, r...)
	}

	n.logger.WithFields(map[string]interface{}{
		"input":   len(facts),
		"output":  len(normalized),
		"groups":  len(keys),
		"dropped": dropped,
	}).Info("Statements normalized")

	return normalized, nil
}

func normalizeSafely(k groupKey, rows []contracts.StatementFact) (out []contracts.StatementFact, err error) {
	defer contracts.RecoverTicker(contracts.StageStatements, k.ticker, &err)
	return NormalizeGroup(k.account, rows), nil
}

// NormalizeGroup is the pure per-(ticker, account) transform. The input is
// not modified; the result is ordered by report date, then disclosure date.
func NormalizeGroup(account string, rows []contracts.StatementFact) []contracts.StatementFact {
	out := make([]contracts.StatementFact, len(rows))
	copy(out, rows)

	forwardFill(out)

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReportDate.Equal(out[j].ReportDate) {
			return out[i].ReportDate.Before(out[j].ReportDate)
		}
		return out[i].DisclosureDate.Before(out[j].DisclosureDate)
	})

	if IsFlow(account) {
		out = isolateFourthQuarter(out)
	}
	if IsAbsolute(account) {
		for i := range out {
			if out[i].Value.Valid {
				out[i].Value = null.FloatFrom(math.Abs(out[i].Value.Float64))
			}
		}
	}
	if account == AccountDepreciation {
		out = decumulate(out)
	}
	return out
}

// forwardFill carries the latest known value over missing ones, in disclosure order
func forwardFill(rows []contracts.StatementFact) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].DisclosureDate.Equal(rows[j].DisclosureDate) {
			return rows[i].DisclosureDate.Before(rows[j].DisclosureDate)
		}
		return rows[i].ReportDate.Before(rows[j].ReportDate)
	})

	last := null.Float{}
	for i := range rows {
		if rows[i].Value.Valid {
			last = rows[i].Value
			continue
		}
		rows[i].Value = last
	}
}

// isolateFourthQuarter replaces each Q4 year-to-date figure with
// Q4 - (Q1 + Q2 + Q3) of the same fiscal year. For restated quarters the
// latest version disclosed up to the Q4 disclosure is used.
// Rows must be sorted by report date.
func isolateFourthQuarter(rows []contracts.StatementFact) []contracts.StatementFact {
	for i := range rows {
		if contracts.Quarter(rows[i].ReportDate) != 4 || !rows[i].Value.Valid {
			continue
		}
		year := rows[i].ReportDate.Year()
		cutoff := rows[i].DisclosureDate

		latest := make(map[int]contracts.StatementFact, 3)
		for _, r := range rows {
			q := contracts.Quarter(r.ReportDate)
			if r.ReportDate.Year() != year || q == 4 || r.DisclosureDate.After(cutoff) {
				continue
			}
			if prev, ok := latest[q]; !ok || !r.DisclosureDate.Before(prev.DisclosureDate) {
				latest[q] = r
			}
		}

		// missing quarters count as zero, like a skipna sum
		sum := 0.0
		for q := 1; q <= 3; q++ {
			if r, ok := latest[q]; ok && r.Value.Valid {
				sum += r.Value.Float64
			}
		}
		rows[i].Value = null.FloatFrom(rows[i].Value.Float64 - sum)
	}
	return rows
}

// decumulate converts a cumulative series into per-quarter deltas. Each row
// subtracts the latest previous-quarter cumulative of the same fiscal year
// known at its own disclosure; without one (Q1 included) the row is kept.
// Rows must be sorted by report date.
func decumulate(rows []contracts.StatementFact) []contracts.StatementFact {
	cumulative := make([]null.Float, len(rows))
	for i := range rows {
		cumulative[i] = rows[i].Value
	}

	for i := range rows {
		q := contracts.Quarter(rows[i].ReportDate)
		if q == 1 || !cumulative[i].Valid {
			continue
		}
		year := rows[i].ReportDate.Year()
		cutoff := rows[i].DisclosureDate

		prev := -1
		for j := range rows {
			if rows[j].ReportDate.Year() != year || contracts.Quarter(rows[j].ReportDate) != q-1 {
				continue
			}
			if rows[j].DisclosureDate.After(cutoff) || !cumulative[j].Valid {
				continue
			}
			if prev < 0 || !rows[j].DisclosureDate.Before(rows[prev].DisclosureDate) {
				prev = j
			}
		}
		if prev >= 0 {
			rows[i].Value = null.FloatFrom(cumulative[i].Float64 - cumulative[prev].Float64)
		}
	}
	return rows
}
