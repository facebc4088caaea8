package core

import "github.com/shopspring/decimal"

// FinancialSummary aggregates one calendar year of the ledger.
type FinancialSummary struct {
	Year            int   `json:"year"`
	TotalIncome     Money `json:"total_income"`
	TotalExpense    Money `json:"total_expense"`
	NetIncome       Money `json:"net_income"`
	FeeIncome       Money `json:"fee_income"`
	CollectedAmount Money `json:"collected_amount"`
	PendingAmount   Money `json:"pending_amount"`
	OverdueAmount   Money `json:"overdue_amount"`
	CollectionRate  int64 `json:"collection_rate"`
}

// MonthTrend is the income and expense of one month (1-12).
type MonthTrend struct {
	Month   int   `json:"month"`
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
	Color  string `json:"color,omitempty"`
	Amount Money  `json:"amount"`
}

// CategoryShare is a CategoryAmount with its share of the grand total.
type CategoryShare struct {
	CategoryAmount
	Percentage decimal.Decimal `json:"percentage"`
}

// OverdueInstallment is an unpaid installment past its due date.
type OverdueInstallment struct {
	Installment
	FeeDescription string `json:"fee_description"`
	Remaining      Money  `json:"remaining"`
	DaysOverdue    int    `json:"days_overdue"`
}

// CollectionRate returns round(collected / (collected+pending+overdue) * 100),
// zero when nothing is owed.
func CollectionRate(collected, pending, overdue Money) int64 {
	denom := collected.Add(pending).Add(overdue)
	if denom.Cents == 0 {
		return 0
	}
	return collected.Decimal().Mul(hundred).Div(denom.Decimal()).Round(0).IntPart()
}
