package s1_statements

import (
	"sort"

	"github.com/guregu/null/v6"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// Aggregate names
const (
	AggEBIT               = "ebit"
	AggEBITDA             = "ebitda"
	AggNetDebt            = "net_debt"
	AggWorkingCapital     = "working_capital"
	AggNetCurrentAssets   = "net_current_assets"
	AggDividends          = "dividends"
	AggEquity             = "equity"
	AggTotalAssets        = "total_assets"
	AggCurrentLiabilities = "current_liabilities"
	AggRevenue            = "revenue"
	AggGrossProfit        = "gross_profit"
	AggNetIncome          = "net_income"
	AggFinancialExpenses  = "financial_expenses"
	AggPreTaxIncome       = "pre_tax_income"
	AggShares             = "shares"
)

// Table is the normalized statement table indexed by filing and account
type Table struct {
	keys   []contracts.AggregateKey
	lines  map[string]map[contracts.AggregateKey]null.Float
	shares map[contracts.AggregateKey]null.Float
}

// NewTable indexes normalized facts. Several rows of the same account in one
// filing are summed.
func NewTable(facts []contracts.StatementFact) *Table {
	t := &Table{
		lines:  make(map[string]map[contracts.AggregateKey]null.Float),
		shares: make(map[contracts.AggregateKey]null.Float),
	}

	seen := make(map[contracts.AggregateKey]bool)
	for _, f := range facts {
		k := f.Key()
		if !seen[k] {
			seen[k] = true
			t.keys = append(t.keys, k)
		}

		if f.Shares.Valid && !t.shares[k].Valid {
			t.shares[k] = f.Shares
		}

		m, ok := t.lines[f.Account]
		if !ok {
			m = make(map[contracts.AggregateKey]null.Float)
			t.lines[f.Account] = m
		}
		m[k] = addSkipNull(m[k], f.Value)
	}

	sort.Slice(t.keys, func(i, j int) bool { return t.keys[i].Less(t.keys[j]) })
	return t
}

// Keys returns every filing key, sorted by ticker and disclosure date
func (t *Table) Keys() []contracts.AggregateKey {
	return t.keys
}

// Line returns the passthrough aggregate of one account
func (t *Table) Line(name, account string) contracts.Aggregate {
	agg := contracts.NewAggregate(name)
	for k, v := range t.lines[account] {
		agg.Values[k] = v
	}
	return agg
}

// Shares returns the outstanding share count per filing
func (t *Table) Shares() contracts.Aggregate {
	agg := contracts.NewAggregate(AggShares)
	for k, v := range t.shares {
		agg.Values[k] = v
	}
	return agg
}

// Aggregates is the full set of named quantities used by the indicator engine
type Aggregates struct {
	Keys   []contracts.AggregateKey
	byName map[string]contracts.Aggregate
}

// Get returns the aggregate by name (empty when unknown)
func (a *Aggregates) Get(name string) contracts.Aggregate {
	if agg, ok := a.byName[name]; ok {
		return agg
	}
	return contracts.NewAggregate(name)
}

// Value returns one aggregate value of one filing
func (a *Aggregates) Value(name string, k contracts.AggregateKey) null.Float {
	return a.byName[name].Values[k]
}

// Names returns every aggregate name, sorted
func (a *Aggregates) Names() []string {
	names := make([]string, 0, len(a.byName))
	for n := range a.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewAggregates builds an Aggregates set from explicit series
func NewAggregates(keys []contracts.AggregateKey, aggs ...contracts.Aggregate) *Aggregates {
	a := &Aggregates{Keys: keys, byName: make(map[string]contracts.Aggregate, len(aggs))}
	for _, agg := range aggs {
		a.byName[agg.Name] = agg
	}
	return a
}

// Derive computes every named aggregate from the normalized table.
// EBIT is required: an empty EBIT fails with ErrFatalConfiguration.
// Empty secondary aggregates are kept (all null) and reported once per run.
func Derive(t *Table, log *logger.Logger) (*Aggregates, error) {
	ebit, err := DeriveEBIT(t)
	if err != nil {
		return nil, err
	}

	aggs := []contracts.Aggregate{
		ebit,
		DeriveEBITDA(t, ebit, log),
		DeriveNetDebt(t),
		DeriveWorkingCapital(t),
		DeriveNetCurrentAssets(t),
		DeriveDividends(t),
		t.Line(AggEquity, AccountEquity),
		t.Line(AggTotalAssets, AccountTotalAssets),
		t.Line(AggCurrentLiabilities, AccountCurrentLiabilities),
		t.Line(AggRevenue, AccountRevenue),
		t.Line(AggGrossProfit, AccountGrossProfit),
		t.Line(AggNetIncome, AccountNetIncome),
		t.Line(AggFinancialExpenses, AccountFinancialExpenses),
		t.Line(AggPreTaxIncome, AccountPreTaxIncome),
		t.Shares(),
	}

	for _, agg := range aggs[1:] {
		if agg.Empty() {
			log.WarnOnce("missing_aggregate:"+agg.Name,
				"Secondary aggregate "+agg.Name+" has no data, dependent ratios will be null")
		}
	}

	return NewAggregates(t.Keys(), aggs...), nil
}

// DeriveEBIT computes EBIT = gross profit (3.03) - operating expenses (3.04)
func DeriveEBIT(t *Table) (contracts.Aggregate, error) {
	ebit := combine(t, AggEBIT, func(k contracts.AggregateKey) null.Float {
		return sub(t.value(AccountGrossProfit, k), t.value(AccountOperatingExpenses, k))
	})
	if ebit.Empty() {
		return ebit, contracts.FatalConfigf("aggregate %s is empty for the whole universe", AggEBIT)
	}
	return ebit, nil
}

// DeriveEBITDA computes EBIT + depreciation, falling back to EBIT alone when
// depreciation was not reported
func DeriveEBITDA(t *Table, ebit contracts.Aggregate, log *logger.Logger) contracts.Aggregate {
	missing := 0
	ebitda := combine(t, AggEBITDA, func(k contracts.AggregateKey) null.Float {
		e := ebit.Get(k)
		dep := t.value(AccountDepreciation, k)
		if !dep.Valid {
			if e.Valid {
				missing++
			}
			return e
		}
		return add(e, dep)
	})
	if missing > 0 {
		log.WarnOnce("missing_input:"+AccountDepreciation,
			"Depreciation (7.04.01) missing for some filings, EBITDA falls back to EBIT")
	}
	return ebitda
}

// DeriveNetDebt computes (short + long term gross debt) - cash equivalents
func DeriveNetDebt(t *Table) contracts.Aggregate {
	return combine(t, AggNetDebt, func(k contracts.AggregateKey) null.Float {
		debt := add(t.value(AccountShortTermDebt, k), t.value(AccountLongTermDebt, k))
		return sub(debt, t.value(AccountCash, k))
	})
}

// DeriveWorkingCapital computes current assets - current liabilities
func DeriveWorkingCapital(t *Table) contracts.Aggregate {
	return combine(t, AggWorkingCapital, func(k contracts.AggregateKey) null.Float {
		return sub(t.value(AccountCurrentAssets, k), t.value(AccountCurrentLiabilities, k))
	})
}

// DeriveNetCurrentAssets computes current assets - (current + non-current liabilities)
func DeriveNetCurrentAssets(t *Table) contracts.Aggregate {
	return combine(t, AggNetCurrentAssets, func(k contracts.AggregateKey) null.Float {
		liabilities := add(t.value(AccountCurrentLiabilities, k), t.value(AccountNonCurrentLiabilities, k))
		return sub(t.value(AccountCurrentAssets, k), liabilities)
	})
}

// DeriveDividends computes dividends + interest on equity paid. A filing that
// reports only one of the two accounts keeps that one.
func DeriveDividends(t *Table) contracts.Aggregate {
	return combine(t, AggDividends, func(k contracts.AggregateKey) null.Float {
		return addSkipNull(t.value(AccountDividends, k), t.value(AccountInterestOnEquity, k))
	})
}

func (t *Table) value(account string, k contracts.AggregateKey) null.Float {
	return t.lines[account][k]
}

func combine(t *Table, name string, fn func(k contracts.AggregateKey) null.Float) contracts.Aggregate {
	agg := contracts.NewAggregate(name)
	for _, k := range t.keys {
		agg.Values[k] = fn(k)
	}
	return agg
}

func add(a, b null.Float) null.Float {
	if !a.Valid || !b.Valid {
		return null.Float{}
	}
	return null.FloatFrom(a.Float64 + b.Float64)
}

func sub(a, b null.Float) null.Float {
	if !a.Valid || !b.Valid {
		return null.Float{}
	}
	return null.FloatFrom(a.Float64 - b.Float64)
}

func addSkipNull(a, b null.Float) null.Float {
	switch {
	case !b.Valid:
		return a
	case !a.Valid:
		return b
	default:
		return null.FloatFrom(a.Float64 + b.Float64)
	}
}
