package s2_pointintime

import (
	"sort"
	"time"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// ExpandOptions controls the validity of the last disclosure of each ticker
type ExpandOptions struct {
	// LegacyExtraDay emits the last disclosure on its own day plus exactly one
	// extra day, reproducing historical output. Takes precedence over Until.
	LegacyExtraDay bool

	// Until extends the last disclosure through this day (inclusive). Zero
	// keeps only the disclosure day itself.
	Until time.Time
}

const day = 24 * time.Hour

// ExpandToDaily turns disclosure level values into one row per calendar day.
// Each disclosure is valid on [d_i, d_{i+1}); several disclosures on the same
// day collapse into the one with the latest report date. The result holds at
// most one row per (ticker, date), sorted by ticker then date.
// ⭐ SSOT: S2 daily validity expansion
func ExpandToDaily(points []contracts.DisclosurePoint, opts ExpandOptions) []contracts.IndicatorPoint {
	byTicker := make(map[string][]contracts.DisclosurePoint)
	for _, p := range points {
		p.DisclosureDate = contracts.Day(p.DisclosureDate)
		byTicker[p.Ticker] = append(byTicker[p.Ticker], p)
	}

	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var out []contracts.IndicatorPoint
	for _, t := range tickers {
		out = append(out, expandTicker(byTicker[t], opts)...)
	}
	return out
}

func expandTicker(points []contracts.DisclosurePoint, opts ExpandOptions) []contracts.IndicatorPoint {
	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].DisclosureDate.Equal(points[j].DisclosureDate) {
			return points[i].DisclosureDate.Before(points[j].DisclosureDate)
		}
		return points[i].ReportDate.Before(points[j].ReportDate)
	})

	// keep the last point of each disclosure day
	dedup := points[:0:0]
	for i, p := range points {
		if i+1 < len(points) && points[i+1].DisclosureDate.Equal(p.DisclosureDate) {
			continue
		}
		dedup = append(dedup, p)
	}

	var out []contracts.IndicatorPoint
	for i, p := range dedup {
		var end time.Time // exclusive
		switch {
		case i+1 < len(dedup):
			end = dedup[i+1].DisclosureDate
		case opts.LegacyExtraDay:
			end = p.DisclosureDate.Add(2 * day)
		case !opts.Until.IsZero() && !contracts.Day(opts.Until).Before(p.DisclosureDate):
			end = contracts.Day(opts.Until).Add(day)
		default:
			end = p.DisclosureDate.Add(day)
		}

		for d := p.DisclosureDate; d.Before(end); d = d.Add(day) {
			out = append(out, contracts.IndicatorPoint{Date: d, Ticker: p.Ticker, Value: p.Value})
		}
	}
	return out
}
