package s3_indicators

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// MarketPremiumName is the persisted name of the market premium series
const MarketPremiumName = "market_premium"

// MarketPremium computes the monthly excess return of the index over CDI:
// (1 + r_ibov) / (1 + r_cdi) - 1 on index month-end dates. CDI is compounded
// into a quota and sampled on the same month-ends; months missing on either
// side are dropped. Points carry ticker MARKET.
func MarketPremium(index []contracts.IndexBar, cdi []contracts.RateBar) contracts.IndicatorSeries {
	series := contracts.IndicatorSeries{Name: MarketPremiumName}

	idx := make([]contracts.IndexBar, len(index))
	copy(idx, index)
	sort.SliceStable(idx, func(i, j int) bool { return idx[i].Date.Before(idx[j].Date) })

	dates := make([]time.Time, len(idx))
	closes := make(map[time.Time]float64, len(idx))
	for i, b := range idx {
		dates[i] = contracts.Day(b.Date)
		closes[dates[i]] = b.Close
	}
	monthEnds := contracts.MonthEnds(dates)

	quota := cdiQuota(cdi)

	// month-end samples present in each source
	var ibovDates, cdiDates []time.Time
	for _, d := range monthEnds {
		ibovDates = append(ibovDates, d)
		if _, ok := quota[d]; ok {
			cdiDates = append(cdiDates, d)
		}
	}

	ibovReturn := make(map[time.Time]null.Float, len(ibovDates))
	for i := 1; i < len(ibovDates); i++ {
		prev, cur := closes[ibovDates[i-1]], closes[ibovDates[i]]
		ibovReturn[ibovDates[i]] = SafeDiv(null.FloatFrom(cur-prev), null.FloatFrom(prev))
	}

	for i := 1; i < len(cdiDates); i++ {
		d := cdiDates[i]
		rIbov, ok := ibovReturn[d]
		if !ok || !rIbov.Valid {
			continue
		}
		rCDI := SafeDiv(null.FloatFrom(quota[d]), null.FloatFrom(quota[cdiDates[i-1]]))
		if !rCDI.Valid {
			continue
		}
		premium := SafeDiv(null.FloatFrom(1+rIbov.Float64), rCDI)
		if !premium.Valid {
			continue
		}
		series.Points = append(series.Points, contracts.IndicatorPoint{
			Date:   d,
			Ticker: contracts.MarketTicker,
			Value:  null.FloatFrom(premium.Float64 - 1),
		})
	}
	return series
}

// cdiQuota compounds daily CDI returns into a growth factor per date
func cdiQuota(cdi []contracts.RateBar) map[time.Time]float64 {
	sorted := make([]contracts.RateBar, len(cdi))
	copy(sorted, cdi)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	quota := make(map[time.Time]float64, len(sorted))
	growth := 1.0
	for _, r := range sorted {
		growth *= 1 + r.Return
		quota[contracts.Day(r.Date)] = growth
	}
	return quota
}
