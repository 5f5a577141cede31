package s3_indicators

import (
	"github.com/guregu/null/v6"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/s1_statements"
)

// quarters per year, used to annualize quarterly flow figures
const annualize = 4.0

// netDebtSentinel flags a non-positive net debt (or EBIT) in ebit_net_debt
const netDebtSentinel = 999.0

// Inputs is everything a ratio can read for one filing
type Inputs struct {
	Key contracts.AggregateKey

	// Price is the unadjusted close of the last bar known at disclosure
	Price null.Float

	aggs *s1_statements.Aggregates
}

// NewInputs binds a filing to its aggregates and as-of price
func NewInputs(aggs *s1_statements.Aggregates, key contracts.AggregateKey, price float64) Inputs {
	p := null.Float{}
	if price > 0 {
		p = Finite(price)
	}
	return Inputs{Key: key, Price: p, aggs: aggs}
}

// Agg returns one aggregate of the filing
func (in Inputs) Agg(name string) null.Float {
	v := in.aggs.Value(name, in.Key)
	if !v.Valid {
		return v
	}
	return Finite(v.Float64)
}

// Shares returns the share count, null when not positive
func (in Inputs) Shares() null.Float {
	s := in.Agg(s1_statements.AggShares)
	if s.Valid && s.Float64 <= 0 {
		return null.Float{}
	}
	return s
}

// PerShare divides an aggregate by the share count
func (in Inputs) PerShare(name string) null.Float {
	return SafeDiv(in.Agg(name), in.Shares())
}

// AnnualPerShare is the per-share figure of a quarterly flow, times four
func (in Inputs) AnnualPerShare(name string) null.Float {
	return mul(in.PerShare(name), annualize)
}

// MarketCap is price times shares
func (in Inputs) MarketCap() null.Float {
	if !in.Price.Valid {
		return null.Float{}
	}
	return mul(in.Shares(), in.Price.Float64)
}

// EV is net debt plus market capitalization
func (in Inputs) EV() null.Float {
	return plus(in.Agg(s1_statements.AggNetDebt), in.MarketCap())
}

// Ratio is one named indicator computed per filing
type Ratio struct {
	Name string
	Func func(in Inputs) null.Float
}

// Ratio names (persisted table names)
const (
	RatioMarketCap             = "market_cap"
	RatioEBIT                  = "ebit"
	RatioEBITDA                = "ebitda"
	RatioNetDebt               = "net_debt"
	RatioEquity                = "equity"
	RatioLAIR                  = "lair"
	RatioEBITAssets            = "ebit_assets"
	RatioEBITFinExp            = "ebit_fin_exp"
	RatioEBITDAFinExp          = "ebitda_fin_exp"
	RatioNetDebtEBIT           = "net_debt_ebit"
	RatioNetDebtEBITDA         = "net_debt_ebitda"
	RatioNetDebtEquity         = "net_debt_equity"
	RatioEBITNetDebt           = "ebit_net_debt"
	RatioEV                    = "ev"
	RatioEVEBIT                = "ev_ebit"
	RatioEVEBITDA              = "ev_ebitda"
	RatioEBITEV                = "ebit_ev"
	RatioEBITDAEV              = "ebitda_ev"
	RatioEquityAssets          = "equity_assets"
	RatioGrossMargin           = "gross_margin"
	RatioEBITMargin            = "ebit_margin"
	RatioEBITDAMargin          = "ebitda_margin"
	RatioNetMargin             = "net_margin"
	RatioROE                   = "roe"
	RatioROA                   = "roa"
	RatioROIC                  = "roic"
	RatioEarningsYield         = "earnings_yield"
	RatioPriceEarnings         = "price_earnings"
	RatioPriceEBIT             = "price_ebit"
	RatioPriceEBITDA           = "price_ebitda"
	RatioBVPS                  = "bvps"
	RatioPriceBVPS             = "price_bvps"
	RatioBVPSPrice             = "bvps_price"
	RatioPSR                   = "psr"
	RatioWorkingCapital        = "working_capital"
	RatioPriceWorkingCapital   = "price_working_capital"
	RatioNetCurrentAssets      = "net_current_assets"
	RatioPriceNetCurrentAssets = "price_net_current_assets"
	RatioPriceAssets           = "price_assets"
	RatioDividendYield         = "dividend_yield"
)

// Registry returns every fundamental ratio in persistence order
// ⭐ SSOT: fundamental ratio formulas are defined here only
func Registry() []Ratio {
	return []Ratio{
		{RatioMarketCap, func(in Inputs) null.Float { return in.MarketCap() }},
		{RatioEBIT, agg(s1_statements.AggEBIT)},
		{RatioEBITDA, agg(s1_statements.AggEBITDA)},
		{RatioNetDebt, agg(s1_statements.AggNetDebt)},
		{RatioEquity, agg(s1_statements.AggEquity)},
		{RatioLAIR, lair},
		{RatioEBITAssets, ratio(s1_statements.AggEBIT, s1_statements.AggTotalAssets)},
		{RatioEBITFinExp, ratio(s1_statements.AggEBIT, s1_statements.AggFinancialExpenses)},
		{RatioEBITDAFinExp, ratio(s1_statements.AggEBITDA, s1_statements.AggFinancialExpenses)},
		{RatioNetDebtEBIT, ratio(s1_statements.AggNetDebt, s1_statements.AggEBIT)},
		{RatioNetDebtEBITDA, ratio(s1_statements.AggNetDebt, s1_statements.AggEBITDA)},
		{RatioNetDebtEquity, ratio(s1_statements.AggNetDebt, s1_statements.AggEquity)},
		{RatioEBITNetDebt, ebitNetDebt},
		{RatioEV, func(in Inputs) null.Float { return in.EV() }},
		{RatioEVEBIT, func(in Inputs) null.Float { return SafeDiv(in.EV(), in.Agg(s1_statements.AggEBIT)) }},
		{RatioEVEBITDA, func(in Inputs) null.Float { return SafeDiv(in.EV(), in.Agg(s1_statements.AggEBITDA)) }},
		{RatioEBITEV, func(in Inputs) null.Float { return SafeDiv(in.Agg(s1_statements.AggEBIT), in.EV()) }},
		{RatioEBITDAEV, func(in Inputs) null.Float { return SafeDiv(in.Agg(s1_statements.AggEBITDA), in.EV()) }},
		{RatioEquityAssets, ratio(s1_statements.AggEquity, s1_statements.AggTotalAssets)},
		{RatioGrossMargin, ratio(s1_statements.AggGrossProfit, s1_statements.AggRevenue)},
		{RatioEBITMargin, ratio(s1_statements.AggEBIT, s1_statements.AggRevenue)},
		{RatioEBITDAMargin, ratio(s1_statements.AggEBITDA, s1_statements.AggRevenue)},
		{RatioNetMargin, ratio(s1_statements.AggNetIncome, s1_statements.AggRevenue)},
		{RatioROE, annualRatio(s1_statements.AggNetIncome, s1_statements.AggEquity)},
		{RatioROA, annualRatio(s1_statements.AggNetIncome, s1_statements.AggTotalAssets)},
		{RatioROIC, roic},
		{RatioEarningsYield, func(in Inputs) null.Float {
			return SafeDiv(in.AnnualPerShare(s1_statements.AggNetIncome), in.Price)
		}},
		{RatioPriceEarnings, priceOver(func(in Inputs) null.Float { return in.AnnualPerShare(s1_statements.AggNetIncome) })},
		{RatioPriceEBIT, priceOver(func(in Inputs) null.Float { return in.AnnualPerShare(s1_statements.AggEBIT) })},
		{RatioPriceEBITDA, priceOver(func(in Inputs) null.Float { return in.AnnualPerShare(s1_statements.AggEBITDA) })},
		{RatioBVPS, func(in Inputs) null.Float { return in.PerShare(s1_statements.AggEquity) }},
		{RatioPriceBVPS, priceOver(func(in Inputs) null.Float { return in.PerShare(s1_statements.AggEquity) })},
		{RatioBVPSPrice, func(in Inputs) null.Float { return SafeDiv(in.PerShare(s1_statements.AggEquity), in.Price) }},
		{RatioPSR, priceOver(func(in Inputs) null.Float { return in.AnnualPerShare(s1_statements.AggRevenue) })},
		{RatioWorkingCapital, agg(s1_statements.AggWorkingCapital)},
		{RatioPriceWorkingCapital, priceOver(func(in Inputs) null.Float { return in.PerShare(s1_statements.AggWorkingCapital) })},
		{RatioNetCurrentAssets, agg(s1_statements.AggNetCurrentAssets)},
		{RatioPriceNetCurrentAssets, priceOver(func(in Inputs) null.Float { return in.PerShare(s1_statements.AggNetCurrentAssets) })},
		{RatioPriceAssets, priceOver(func(in Inputs) null.Float { return in.PerShare(s1_statements.AggTotalAssets) })},
		{RatioDividendYield, func(in Inputs) null.Float { return SafeDiv(in.PerShare(s1_statements.AggDividends), in.Price) }},
	}
}

// RatioNames lists the registry names in order
func RatioNames() []string {
	reg := Registry()
	names := make([]string, len(reg))
	for i, r := range reg {
		names[i] = r.Name
	}
	return names
}

func agg(name string) func(in Inputs) null.Float {
	return func(in Inputs) null.Float { return in.Agg(name) }
}

func ratio(num, den string) func(in Inputs) null.Float {
	return func(in Inputs) null.Float { return SafeDiv(in.Agg(num), in.Agg(den)) }
}

func annualRatio(num, den string) func(in Inputs) null.Float {
	return func(in Inputs) null.Float { return SafeDiv(mul(in.Agg(num), annualize), in.Agg(den)) }
}

func priceOver(den func(in Inputs) null.Float) func(in Inputs) null.Float {
	return func(in Inputs) null.Float { return SafeDiv(in.Price, den(in)) }
}

// lair prefers the reported pre-tax income and falls back to EBIT minus
// financial expenses
func lair(in Inputs) null.Float {
	if v := in.Agg(s1_statements.AggPreTaxIncome); v.Valid {
		return v
	}
	return minus(in.Agg(s1_statements.AggEBIT), in.Agg(s1_statements.AggFinancialExpenses))
}

func roic(in Inputs) null.Float {
	invested := minus(in.Agg(s1_statements.AggTotalAssets), in.Agg(s1_statements.AggCurrentLiabilities))
	return SafeDiv(mul(in.Agg(s1_statements.AggNetIncome), annualize), invested)
}

// ebitNetDebt is EBIT / net debt with sentinels: +999 when the company has no
// net debt, -999 when EBIT is not positive
func ebitNetDebt(in Inputs) null.Float {
	ebit := in.Agg(s1_statements.AggEBIT)
	netDebt := in.Agg(s1_statements.AggNetDebt)
	switch {
	case !ebit.Valid || !netDebt.Valid:
		return null.Float{}
	case netDebt.Float64 <= 0:
		return null.FloatFrom(netDebtSentinel)
	case ebit.Float64 <= 0:
		return null.FloatFrom(-netDebtSentinel)
	default:
		return SafeDiv(ebit, netDebt)
	}
}
