package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// DefaultUpcomingMonths is the look-ahead used when callers pass zero.
const DefaultUpcomingMonths = 3

// InstallmentLine is one scheduled payment of an installment purchase.
type InstallmentLine struct {
	Number      int             `json:"installment_number"`
	DueDate     core.Date       `json:"due_date"`
	Amount      decimal.Decimal `json:"amount"`
	AmountLocal decimal.Decimal `json:"amount_local"`
	Currency    core.Currency   `json:"currency"`
	Paid        bool            `json:"paid"`
}

// UpcomingPayment is an unpaid installment falling due inside the look-ahead
// window.
type UpcomingPayment struct {
	TransactionID int64           `json:"transaction_id"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Number        int             `json:"installment_number"`
	Total         int             `json:"installments_total"`
	DueDate       core.Date       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      core.Currency   `json:"currency"`
	AmountLocal   decimal.Decimal `json:"amount_local"`
}

// installmentAmount splits the amount evenly. No residual is carried onto the
// last installment.
func installmentAmount(t core.Transaction) decimal.Decimal {
	return t.Amount.Div(decimal.NewFromInt(int64(t.InstallmentsTotal)))
}

// ScheduleInstallments expands t into its full payment schedule, one line per
// installment, due one calendar month apart starting on the purchase date.
//
// Foreign amounts are converted with currentRate when it is positive and with
// the rate recorded on the transaction otherwise.
func ScheduleInstallments(t core.Transaction, currentRate decimal.Decimal) ([]InstallmentLine, error) {
	if t.InstallmentsTotal < 1 {
		return nil, fmt.Errorf("schedule installments: %w: total %d", core.ErrInvalidInstallments, t.InstallmentsTotal)
	}
	if err := t.Date.Validate(); err != nil {
		return nil, fmt.Errorf("schedule installments: %w", err)
	}

	rate := t.ExchangeRate
	if currentRate.IsPositive() {
		rate = currentRate
	}
	per := installmentAmount(t)

	lines := make([]InstallmentLine, 0, t.InstallmentsTotal)
	for i := 1; i <= t.InstallmentsTotal; i++ {
		local := per
		if t.Currency == core.Foreign {
			local = per.Mul(rate)
		}
		lines = append(lines, InstallmentLine{
			Number:      i,
			DueDate:     t.Date.AddMonths(i - 1),
			Amount:      per,
			AmountLocal: local,
			Currency:    t.Currency,
			Paid:        i <= t.InstallmentsPaid,
		})
	}
	return lines, nil
}

// UpcomingInstallments lists unpaid credit card installments due between now
// and now + 30*monthsAhead days, both ends inclusive, earliest first.
// Foreign amounts use the rate recorded at purchase time.
func UpcomingInstallments(ledger core.Ledger, monthsAhead int, now time.Time) []UpcomingPayment {
	if monthsAhead <= 0 {
		monthsAhead = DefaultUpcomingMonths
	}
	today := core.DateOf(now)
	cutoff := today.AddDays(30 * monthsAhead)

	var out []UpcomingPayment
	for _, t := range ledger {
		if !t.IsInstallmentPurchase() || t.RemainingInstallments() == 0 {
			continue
		}
		per := installmentAmount(t)
		for i := t.InstallmentsPaid + 1; i <= t.InstallmentsTotal; i++ {
			due := t.Date.AddMonths(i - 1)
			if due.Before(today.Time) {
				continue
			}
			if due.After(cutoff.Time) {
				break
			}
			out = append(out, UpcomingPayment{
				TransactionID: t.ID,
				Description:   t.Description,
				Category:      t.Category,
				Number:        i,
				Total:         t.InstallmentsTotal,
				DueDate:       due,
				Amount:        per,
				Currency:      t.Currency,
				AmountLocal:   per.Mul(t.ExchangeRate),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.DueDate.Equal(b.DueDate.Time) {
			return a.DueDate.Before(b.DueDate.Time)
		}
		if a.TransactionID != b.TransactionID {
			return a.TransactionID < b.TransactionID
		}
		return a.Number < b.Number
	})
	return out
}

// InstallmentDebt is the local amount still owed across all installment
// purchases, valued at the recorded rates.
func InstallmentDebt(ledger core.Ledger) decimal.Decimal {
	total := decimal.Zero
	for _, t := range ledger {
		if !t.IsInstallmentPurchase() {
			continue
		}
		remaining := decimal.NewFromInt(int64(t.RemainingInstallments()))
		total = total.Add(installmentAmount(t).Mul(remaining).Mul(t.ExchangeRate))
	}
	return total
}
