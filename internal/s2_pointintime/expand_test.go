package s2_pointintime

import (
	"math/rand"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

func d(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func point(ticker, disclosure string, v float64) contracts.DisclosurePoint {
	return contracts.DisclosurePoint{
		ReportDate:     d(disclosure).AddDate(0, -1, 0),
		DisclosureDate: d(disclosure),
		Ticker:         ticker,
		Value:          null.FloatFrom(v),
	}
}

func TestExpandToDaily_HalfOpenIntervals(t *testing.T) {
	points := []contracts.DisclosurePoint{
		point("VALE3", "2021-01-04", 2),
		point("VALE3", "2021-01-01", 1),
	}

	got := ExpandToDaily(points, ExpandOptions{})
	require.Len(t, got, 4)

	assert.Equal(t, d("2021-01-01"), got[0].Date)
	assert.Equal(t, 1.0, got[2].Value.Float64) // 2021-01-03
	assert.Equal(t, d("2021-01-04"), got[3].Date)
	assert.Equal(t, 2.0, got[3].Value.Float64)
}

func TestExpandToDaily_LegacyExtraDay(t *testing.T) {
	points := []contracts.DisclosurePoint{point("VALE3", "2021-01-01", 1)}

	got := ExpandToDaily(points, ExpandOptions{LegacyExtraDay: true, Until: d("2021-02-01")})
	require.Len(t, got, 2)
	assert.Equal(t, d("2021-01-02"), got[1].Date)
	assert.Equal(t, 1.0, got[1].Value.Float64)
}

func TestExpandToDaily_Until(t *testing.T) {
	points := []contracts.DisclosurePoint{point("VALE3", "2021-01-01", 1)}

	got := ExpandToDaily(points, ExpandOptions{Until: d("2021-01-10")})
	assert.Len(t, got, 10)

	// an Until before the disclosure never truncates it
	got = ExpandToDaily(points, ExpandOptions{Until: d("2020-12-01")})
	assert.Len(t, got, 1)
}

func TestExpandToDaily_SameDayDisclosuresCollapse(t *testing.T) {
	older := point("ITUB4", "2021-03-01", 1)
	older.ReportDate = d("2020-09-30")
	newer := point("ITUB4", "2021-03-01", 2)
	newer.ReportDate = d("2020-12-31")

	got := ExpandToDaily([]contracts.DisclosurePoint{newer, older}, ExpandOptions{})
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Value.Float64)
}

func TestExpandToDaily_SortedByTickerThenDate(t *testing.T) {
	points := []contracts.DisclosurePoint{
		point("WEGE3", "2021-01-01", 1),
		point("ABEV3", "2021-01-02", 1),
		point("ABEV3", "2021-01-01", 1),
	}

	got := ExpandToDaily(points, ExpandOptions{})
	require.Len(t, got, 3)
	assert.Equal(t, "ABEV3", got[0].Ticker)
	assert.Equal(t, d("2021-01-02"), got[1].Date)
	assert.Equal(t, "WEGE3", got[2].Ticker)
}

func TestExpandToDaily_PointInTimeInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	start := d("2020-01-01")

	var points []contracts.DisclosurePoint
	for _, ticker := range []string{"PETR4", "VALE3", "BBAS3"} {
		offset := 0
		for i := 0; i < 12; i++ {
			offset += 1 + rng.Intn(60)
			p := contracts.DisclosurePoint{
				ReportDate:     start.AddDate(0, 0, offset-30),
				DisclosureDate: start.AddDate(0, 0, offset),
				Ticker:         ticker,
				Value:          null.FloatFrom(rng.Float64()),
			}
			points = append(points, p)
		}
	}

	until := start.AddDate(3, 0, 0)
	lookup := NewLookup(ExpandToDaily(points, ExpandOptions{Until: until}))

	seen := make(map[contracts.IndicatorKey]bool)
	for _, p := range ExpandToDaily(points, ExpandOptions{Until: until}) {
		k := contracts.IndicatorKey{Date: p.Date, Ticker: p.Ticker}
		require.False(t, seen[k], "duplicate row %v", k)
		seen[k] = true
	}

	for _, ticker := range []string{"PETR4", "VALE3", "BBAS3"} {
		for day := start; day.Before(until); day = day.AddDate(0, 0, 1) {
			var want *contracts.DisclosurePoint
			for i := range points {
				p := points[i]
				if p.Ticker != ticker || p.DisclosureDate.After(day) {
					continue
				}
				if want == nil || !p.DisclosureDate.Before(want.DisclosureDate) {
					want = &points[i]
				}
			}

			got, ok := lookup.At(ticker, day)
			if want == nil {
				assert.False(t, ok, "%s %s has a value before any disclosure", ticker, day)
				continue
			}
			require.True(t, ok, "%s %s missing", ticker, day)
			assert.Equal(t, want.Value, got)
		}
	}
}
