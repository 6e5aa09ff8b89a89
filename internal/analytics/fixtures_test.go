package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var nextID int64

// expense builds a local-currency expense on the given day.
func expense(date core.Date, category string, amount float64) core.Transaction {
	nextID++
	return core.Transaction{
		ID:                nextID,
		Date:              date,
		Type:              core.Expense,
		Category:          category,
		Amount:            decimal.NewFromFloat(amount),
		Currency:          core.Local,
		ExchangeRate:      decimal.NewFromInt(1),
		PaymentMethod:     core.DebitCard,
		InstallmentsTotal: 1,
	}
}

func income(date core.Date, amount float64) core.Transaction {
	t := expense(date, "Salary", amount)
	t.Type = core.Income
	t.PaymentMethod = ""
	return t
}

func described(t core.Transaction, desc string) core.Transaction {
	t.Description = desc
	return t
}

func at(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 10, 30, 0, 0, time.UTC)
}
