package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func reportLedger() core.Ledger {
	usd := expense(core.NewDate(2024, 2, 10), "Travel", 100)
	usd.Currency = core.Foreign
	usd.ExchangeRate = decimal.NewFromInt(10)

	rent := expense(core.NewDate(2024, 1, 1), "Rent", 500)
	rent.FixedExpense = true

	return core.Ledger{
		income(core.NewDate(2024, 1, 1), 2000),
		rent,
		expense(core.NewDate(2024, 1, 15), "Food", 300),
		usd,
		expense(core.NewDate(2023, 12, 31), "Food", 999),
	}
}

func TestMonthlyBalance(t *testing.T) {
	months := MonthlyBalance(reportLedger(), 2024)
	require.Len(t, months, 12)
	assert.Equal(t, "2024-01", months[0].Month.String())
	assert.InDelta(t, 2000, months[0].Income.InexactFloat64(), 1e-9)
	assert.InDelta(t, 800, months[0].Expense.InexactFloat64(), 1e-9)
	assert.InDelta(t, 1200, months[0].Balance.InexactFloat64(), 1e-9)
	assert.InDelta(t, -1000, months[1].Balance.InexactFloat64(), 1e-9)
	assert.True(t, months[11].Balance.IsZero())
}

func TestCategoryBreakdown(t *testing.T) {
	shares := CategoryBreakdown(reportLedger(), 2024)
	require.Len(t, shares, 3)
	assert.Equal(t, "Travel", shares[0].Category)
	assert.InDelta(t, 1000, shares[0].Amount.InexactFloat64(), 1e-9)
	assert.InDelta(t, 1000.0/1800*100, shares[0].Percent, 1e-9)
	assert.Equal(t, "Rent", shares[1].Category)
	assert.Equal(t, "Food", shares[2].Category)

	all := CategoryBreakdown(reportLedger(), 0)
	assert.Equal(t, "Food", all[0].Category)
}

func TestFixedVsVariable(t *testing.T) {
	fv := FixedVsVariable(reportLedger(), 2024)
	assert.InDelta(t, 500, fv.Fixed.InexactFloat64(), 1e-9)
	assert.InDelta(t, 1300, fv.Variable.InexactFloat64(), 1e-9)
	assert.InDelta(t, 500.0/1800*100, fv.FixedPercent, 1e-9)

	empty := FixedVsVariable(nil, 2024)
	assert.Zero(t, empty.FixedPercent)
}

func TestCurrencyBreakdown(t *testing.T) {
	totals := CurrencyBreakdown(reportLedger())
	require.Len(t, totals, 3)
	assert.Equal(t, core.Expense, totals[0].Type)
	assert.Equal(t, core.Foreign, totals[0].Currency)
	assert.InDelta(t, 100, totals[0].Amount.InexactFloat64(), 1e-9)
	assert.InDelta(t, 1000, totals[0].AmountLocal.InexactFloat64(), 1e-9)
	assert.Equal(t, core.Local, totals[1].Currency)
	assert.Equal(t, 3, totals[1].Count)
	assert.Equal(t, core.Income, totals[2].Type)
}

func TestSummarizeEmptyLedger(t *testing.T) {
	s := Summarize(nil)
	assert.True(t, s.Balance.IsZero())
	assert.True(t, s.InstallmentDebt.IsZero())
	assert.Zero(t, s.Transactions)
	assert.Empty(t, UpcomingInstallments(nil, 3, at(2024, 1, 1)))
	assert.Empty(t, RankCategories(nil, "anything here"))
}
