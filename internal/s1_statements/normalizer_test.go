package s1_statements

import (
	"context"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

func d(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func fact(ticker, account, report, disclosure string, v float64) contracts.StatementFact {
	return contracts.StatementFact{
		ReportDate:     d(report),
		DisclosureDate: d(disclosure),
		Ticker:         ticker,
		Account:        account,
		Value:          null.FloatFrom(v),
		Shares:         null.FloatFrom(1000),
	}
}

func nullFact(ticker, account, report, disclosure string) contracts.StatementFact {
	f := fact(ticker, account, report, disclosure, 0)
	f.Value = null.Float{}
	return f
}

func values(rows []contracts.StatementFact) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Value.Float64
	}
	return out
}

func TestNormalizeGroup_DepreciationDecumulation(t *testing.T) {
	rows := []contracts.StatementFact{
		fact("VALE3", AccountDepreciation, "2021-03-31", "2021-05-01", 40),
		fact("VALE3", AccountDepreciation, "2021-06-30", "2021-08-01", 90),
		fact("VALE3", AccountDepreciation, "2021-09-30", "2021-11-01", 150),
		fact("VALE3", AccountDepreciation, "2021-12-31", "2022-03-01", 200),
	}

	got := NormalizeGroup(AccountDepreciation, rows)
	assert.Equal(t, []float64{40, 50, 60, 50}, values(got))
}

func TestNormalizeGroup_DepreciationSignAndNewYear(t *testing.T) {
	rows := []contracts.StatementFact{
		fact("VALE3", AccountDepreciation, "2021-09-30", "2021-11-01", -150),
		fact("VALE3", AccountDepreciation, "2021-12-31", "2022-03-01", -200),
		fact("VALE3", AccountDepreciation, "2022-03-31", "2022-05-01", -45),
		fact("VALE3", AccountDepreciation, "2022-06-30", "2022-08-01", -100),
	}

	got := NormalizeGroup(AccountDepreciation, rows)
	// first row is the baseline, Q1 restarts the cumulation
	assert.Equal(t, []float64{150, 50, 45, 55}, values(got))
}

func TestNormalizeGroup_FourthQuarterIsolation(t *testing.T) {
	rows := []contracts.StatementFact{
		fact("WEGE3", AccountRevenue, "2020-03-31", "2020-04-28", 100),
		fact("WEGE3", AccountRevenue, "2020-06-30", "2020-07-28", 120),
		fact("WEGE3", AccountRevenue, "2020-09-30", "2020-10-28", 130),
		fact("WEGE3", AccountRevenue, "2020-12-31", "2021-02-20", 500),
	}

	got := NormalizeGroup(AccountRevenue, rows)
	require.Len(t, got, 4)
	assert.Equal(t, []float64{100, 120, 130, 150}, values(got))

	// reconstruction round trip
	sum := 0.0
	for _, r := range got {
		sum += r.Value.Float64
	}
	assert.Equal(t, 500.0, sum)
}

func TestNormalizeGroup_RestatedQuarterUsesLatestKnown(t *testing.T) {
	rows := []contracts.StatementFact{
		fact("WEGE3", AccountNetIncome, "2020-03-31", "2020-04-28", 10),
		fact("WEGE3", AccountNetIncome, "2020-03-31", "2020-09-01", 12), // restated
		fact("WEGE3", AccountNetIncome, "2020-06-30", "2020-07-28", 20),
		fact("WEGE3", AccountNetIncome, "2020-09-30", "2020-10-28", 30),
		fact("WEGE3", AccountNetIncome, "2020-12-31", "2021-02-20", 100),
	}

	got := NormalizeGroup(AccountNetIncome, rows)
	require.Len(t, got, 5)
	assert.Equal(t, 100.0-12-20-30, got[4].Value.Float64)
}

func TestNormalizeGroup_DepreciationRestatementIsPointInTime(t *testing.T) {
	rows := []contracts.StatementFact{
		fact("VALE3", AccountDepreciation, "2021-03-31", "2021-05-01", 40),
		fact("VALE3", AccountDepreciation, "2021-06-30", "2021-08-01", 90),
		fact("VALE3", AccountDepreciation, "2021-06-30", "2021-12-01", 95), // restated after Q3
		fact("VALE3", AccountDepreciation, "2021-09-30", "2021-11-01", 150),
	}

	got := NormalizeGroup(AccountDepreciation, rows)
	require.Len(t, got, 4)
	// the restated Q2 subtracts Q1, and Q3 only sees the Q2 known on 2021-11-01
	assert.Equal(t, []float64{40, 50, 55, 60}, values(got))
}

func TestNormalizeGroup_DividendsAreNotIsolated(t *testing.T) {
	for _, account := range []string{AccountDividends, AccountInterestOnEquity} {
		t.Run(account, func(t *testing.T) {
			rows := []contracts.StatementFact{
				fact("ITSA4", account, "2020-09-30", "2020-10-28", 30),
				fact("ITSA4", account, "2020-12-31", "2021-02-20", 100),
			}

			assert.False(t, IsFlow(account))
			got := NormalizeGroup(account, rows)
			assert.Equal(t, []float64{30, 100}, values(got))
		})
	}
}

func TestNormalizeGroup_StockAccountsAreNotIsolated(t *testing.T) {
	rows := []contracts.StatementFact{
		fact("ITUB4", AccountTotalAssets, "2020-09-30", "2020-10-28", 1000),
		fact("ITUB4", AccountTotalAssets, "2020-12-31", "2021-02-20", 1100),
	}

	got := NormalizeGroup(AccountTotalAssets, rows)
	assert.Equal(t, []float64{1000, 1100}, values(got))
}

func TestNormalizeGroup_AbsoluteAccounts(t *testing.T) {
	tests := []struct {
		account string
		want    float64
	}{
		{AccountOperatingExpenses, 30},
		{AccountFinancialExpenses, 30},
		{AccountTaxes, 30},
		{AccountDividends, 30},
		{AccountInterestOnEquity, 30},
		{AccountCostOfGoods, 30},
		{AccountNetIncome, -30},
	}

	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			rows := []contracts.StatementFact{fact("BBAS3", tt.account, "2020-03-31", "2020-05-01", -30)}
			got := NormalizeGroup(tt.account, rows)
			assert.Equal(t, tt.want, got[0].Value.Float64)
		})
	}
}

func TestNormalizeGroup_ForwardFillByDisclosure(t *testing.T) {
	rows := []contracts.StatementFact{
		nullFact("ABEV3", AccountEquity, "2020-09-30", "2020-10-28"),
		fact("ABEV3", AccountEquity, "2020-06-30", "2020-07-28", 70),
		nullFact("ABEV3", AccountEquity, "2020-03-31", "2020-04-28"),
	}

	got := NormalizeGroup(AccountEquity, rows)
	require.Len(t, got, 3)
	assert.False(t, got[0].Value.Valid, "nothing known before the first disclosure")
	assert.Equal(t, 70.0, got[1].Value.Float64)
	assert.Equal(t, 70.0, got[2].Value.Float64)

	// input untouched
	assert.False(t, rows[0].Value.Valid)
}

func TestNormalizer_Normalize(t *testing.T) {
	facts := []contracts.StatementFact{
		fact("VALE3", AccountRevenue, "2020-12-31", "2021-02-20", 400),
		fact("VALE3", AccountRevenue, "2020-09-30", "2020-10-28", 100),
		fact("ABEV3", AccountEquity, "2020-09-30", "2020-10-28", 10),
		fact("ABEV3", "9.99", "2020-09-30", "2020-10-28", 10),
		fact("ABEV3", " 3.04", "2020-09-30", "2020-10-28", -5),
	}

	n := NewNormalizer(Config{Workers: 4}, logger.Nop())
	got, err := n.Normalize(context.Background(), facts)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "ABEV3", got[0].Ticker)
	assert.Equal(t, AccountEquity, got[0].Account)
	assert.Equal(t, AccountOperatingExpenses, got[1].Account)
	assert.Equal(t, 5.0, got[1].Value.Float64)
	assert.Equal(t, "VALE3", got[2].Ticker)
	assert.Equal(t, 300.0, got[3].Value.Float64)
}

func TestNormalizer_Idempotent(t *testing.T) {
	facts := []contracts.StatementFact{
		fact("VALE3", AccountRevenue, "2020-03-31", "2020-04-28", 100),
		fact("VALE3", AccountRevenue, "2020-12-31", "2021-02-20", 400),
		fact("PETR4", AccountDepreciation, "2020-03-31", "2020-04-28", 10),
		fact("PETR4", AccountDepreciation, "2020-06-30", "2020-07-28", 25),
		fact("PETR4", AccountCash, "2020-06-30", "2020-07-28", 7),
	}

	n := NewNormalizer(Config{Workers: 3}, logger.Nop())
	first, err := n.Normalize(context.Background(), facts)
	require.NoError(t, err)
	second, err := n.Normalize(context.Background(), facts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalizer_ZeroAsMissing(t *testing.T) {
	facts := []contracts.StatementFact{
		fact("VALE3", AccountEquity, "2020-03-31", "2020-04-28", 50),
		fact("VALE3", AccountEquity, "2020-06-30", "2020-07-28", 0),
	}

	n := NewNormalizer(Config{Workers: 1, ZeroAsMissing: true}, logger.Nop())
	got, err := n.Normalize(context.Background(), facts)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50}, values(got))
}

func TestNormalizer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewNormalizer(Config{Workers: 1}, logger.Nop())
	_, err := n.Normalize(ctx, []contracts.StatementFact{fact("VALE3", AccountEquity, "2020-03-31", "2020-04-28", 1)})
	assert.ErrorIs(t, err, context.Canceled)
}
