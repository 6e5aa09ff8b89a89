package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// MonthBalance is the income, spending and net result of one month.
type MonthBalance struct {
	Month   core.Month      `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// CategoryShare is a category's total spend and its share of all spending.
type CategoryShare struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Percent  float64         `json:"percent"`
}

type FixedVariable struct {
	Fixed        decimal.Decimal `json:"fixed"`
	Variable     decimal.Decimal `json:"variable"`
	FixedPercent float64         `json:"fixed_percent"`
}

// CurrencyTotal sums one (type, currency) pair in both the original
// currency and the local one.
type CurrencyTotal struct {
	Type        core.TransactionType `json:"type"`
	Currency    core.Currency        `json:"currency"`
	Count       int                  `json:"count"`
	Amount      decimal.Decimal      `json:"amount"`
	AmountLocal decimal.Decimal      `json:"amount_local"`
}

// Summary is the headline view of a ledger.
type Summary struct {
	TotalIncome     decimal.Decimal `json:"total_income"`
	TotalExpense    decimal.Decimal `json:"total_expense"`
	Balance         decimal.Decimal `json:"balance"`
	InstallmentDebt decimal.Decimal `json:"installment_debt"`
	Transactions    int             `json:"transactions"`
}

func inYear(year int) core.Filter {
	if year == 0 {
		return core.Filter{}
	}
	return core.Filter{From: core.NewDate(year, 1, 1), To: core.NewDate(year, 12, 31)}
}

// MonthlyBalance returns all twelve months of year, including empty ones.
func MonthlyBalance(ledger core.Ledger, year int) []MonthBalance {
	out := make([]MonthBalance, 12)
	for i := range out {
		out[i] = MonthBalance{
			Month:   core.Month{Year: year, Month: time.Month(i + 1)},
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		}
	}
	for _, t := range ledger.Filter(inYear(year)) {
		mb := &out[int(t.Date.Time.Month())-1]
		if t.Type == core.Income {
			mb.Income = mb.Income.Add(t.AmountLocal())
		} else {
			mb.Expense = mb.Expense.Add(t.AmountLocal())
		}
	}
	for i := range out {
		out[i].Balance = out[i].Income.Sub(out[i].Expense)
	}
	return out
}

// CategoryBreakdown totals expenses per category, largest first. Year 0
// covers the whole ledger.
func CategoryBreakdown(ledger core.Ledger, year int) []CategoryShare {
	sums := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, t := range ledger.Filter(inYear(year)).OfType(core.Expense) {
		sums[t.Category] = sums[t.Category].Add(t.AmountLocal())
		total = total.Add(t.AmountLocal())
	}

	out := make([]CategoryShare, 0, len(sums))
	for c, amt := range sums {
		share := CategoryShare{Category: c, Amount: amt}
		if total.IsPositive() {
			share.Percent = amt.Div(total).InexactFloat64() * 100
		}
		out = append(out, share)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func FixedVsVariable(ledger core.Ledger, year int) FixedVariable {
	fv := FixedVariable{Fixed: decimal.Zero, Variable: decimal.Zero}
	for _, t := range ledger.Filter(inYear(year)).OfType(core.Expense) {
		if t.FixedExpense {
			fv.Fixed = fv.Fixed.Add(t.AmountLocal())
		} else {
			fv.Variable = fv.Variable.Add(t.AmountLocal())
		}
	}
	if total := fv.Fixed.Add(fv.Variable); total.IsPositive() {
		fv.FixedPercent = fv.Fixed.Div(total).InexactFloat64() * 100
	}
	return fv
}

// CurrencyBreakdown groups the ledger by type and currency, ordered by
// type then currency.
func CurrencyBreakdown(ledger core.Ledger) []CurrencyTotal {
	type key struct {
		typ core.TransactionType
		cur core.Currency
	}
	index := make(map[key]*CurrencyTotal)
	for _, t := range ledger {
		k := key{t.Type, t.Currency}
		ct, ok := index[k]
		if !ok {
			ct = &CurrencyTotal{Type: t.Type, Currency: t.Currency, Amount: decimal.Zero, AmountLocal: decimal.Zero}
			index[k] = ct
		}
		ct.Count++
		ct.Amount = ct.Amount.Add(t.Amount)
		ct.AmountLocal = ct.AmountLocal.Add(t.AmountLocal())
	}

	out := make([]CurrencyTotal, 0, len(index))
	for _, ct := range index {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

// Summarize totals the whole ledger.
func Summarize(ledger core.Ledger) Summary {
	s := Summary{TotalIncome: decimal.Zero, TotalExpense: decimal.Zero, Transactions: len(ledger)}
	for _, t := range ledger {
		if t.Type == core.Income {
			s.TotalIncome = s.TotalIncome.Add(t.AmountLocal())
		} else {
			s.TotalExpense = s.TotalExpense.Add(t.AmountLocal())
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	s.InstallmentDebt = InstallmentDebt(ledger)
	return s
}
