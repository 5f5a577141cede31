package s1_statements

import "strings"

// Statement line codes (CVM standardized chart of accounts)
// ⭐ SSOT: the account whitelist lives here only
const (
	AccountTotalAssets           = "1"
	AccountCurrentAssets         = "1.01"
	AccountCash                  = "1.01.01"
	AccountCurrentLiabilities    = "2.01"
	AccountShortTermDebt         = "2.01.04"
	AccountNonCurrentLiabilities = "2.02"
	AccountLongTermDebt          = "2.02.01"
	AccountEquity                = "2.03"
	AccountRevenue               = "3.01"
	AccountCostOfGoods           = "3.02"
	AccountGrossProfit           = "3.03"
	AccountOperatingExpenses     = "3.04"
	AccountOtherOperating        = "3.04.06"
	AccountEBITReported          = "3.05"
	AccountFinancialResult       = "3.06"
	AccountFinancialIncome       = "3.06.01"
	AccountFinancialExpenses     = "3.06.02"
	AccountPreTaxIncome          = "3.07"
	AccountTaxes                 = "3.08"
	AccountContinuingIncome      = "3.09"
	AccountDiscontinuedIncome    = "3.10"
	AccountNetIncome             = "3.11"
	AccountNetIncomeParent       = "3.11.01"
	AccountDepreciation          = "7.04.01"
	AccountDividends             = "7.08.04.01"
	AccountInterestOnEquity      = "7.08.04.02"
)

var whitelist = map[string]bool{
	AccountTotalAssets:           true,
	AccountCurrentAssets:         true,
	AccountCash:                  true,
	AccountCurrentLiabilities:    true,
	AccountShortTermDebt:         true,
	AccountNonCurrentLiabilities: true,
	AccountLongTermDebt:          true,
	AccountEquity:                true,
	AccountRevenue:               true,
	AccountCostOfGoods:           true,
	AccountGrossProfit:           true,
	AccountOperatingExpenses:     true,
	AccountOtherOperating:        true,
	AccountEBITReported:          true,
	AccountFinancialResult:       true,
	AccountFinancialIncome:       true,
	AccountFinancialExpenses:     true,
	AccountPreTaxIncome:          true,
	AccountTaxes:                 true,
	AccountContinuingIncome:      true,
	AccountDiscontinuedIncome:    true,
	AccountNetIncome:             true,
	AccountNetIncomeParent:       true,
	AccountDepreciation:          true,
	AccountDividends:             true,
	AccountInterestOnEquity:      true,
}

// absolute accounts are stored without sign
var absolute = map[string]bool{
	AccountCostOfGoods:       true,
	AccountOperatingExpenses: true,
	AccountFinancialExpenses: true,
	AccountTaxes:             true,
	AccountDividends:         true,
	AccountInterestOnEquity:  true,
	AccountDepreciation:      true,
}

// IsWhitelisted reports whether the account code is handled at all
func IsWhitelisted(account string) bool {
	return whitelist[strings.TrimSpace(account)]
}

// IsFlow reports whether the account is reported year-to-date in the fourth
// quarter filing and needs quarter isolation. Depreciation is cumulative in
// every quarter and is handled separately.
func IsFlow(account string) bool {
	return strings.HasPrefix(account, "3.")
}

// IsAbsolute reports whether the account is stored as an absolute value
func IsAbsolute(account string) bool {
	return absolute[account]
}
