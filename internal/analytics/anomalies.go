package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// DefaultAnomalyThreshold flags spending 50% above the historical average.
const DefaultAnomalyThreshold = 1.5

// Anomaly is a category whose spend this month exceeds its usual level.
type Anomaly struct {
	Category        string  `json:"category"`
	CurrentAmount   float64 `json:"current_amount"`
	AverageAmount   float64 `json:"average_amount"`
	PercentIncrease float64 `json:"percent_increase"`
}

// AnomalyReport lists anomalies by descending percent increase. Status is
// StatusInsufficientData when there is no history before the current month
// or no spending in it yet.
type AnomalyReport struct {
	Status    Status     `json:"status"`
	Month     core.Month `json:"month"`
	Threshold float64    `json:"threshold"`
	Anomalies []Anomaly  `json:"anomalies"`
}

// DetectUnusualSpending compares each category's spend in now's month with
// its average monthly spend before that month. A category is flagged when
// current > average*thresholdFactor. Categories with no history are never
// flagged. thresholdFactor <= 0 selects DefaultAnomalyThreshold.
func DetectUnusualSpending(ledger core.Ledger, thresholdFactor float64, now time.Time) AnomalyReport {
	if thresholdFactor <= 0 {
		thresholdFactor = DefaultAnomalyThreshold
	}
	current := core.MonthOf(now)
	report := AnomalyReport{Status: StatusInsufficientData, Month: current, Threshold: thresholdFactor}

	historical := make(map[string][]float64)
	currentSpend := make(map[string]decimal.Decimal)
	for _, a := range AggregateMonthly(ledger, core.Expense) {
		switch {
		case a.Month.Before(current):
			historical[a.Category] = append(historical[a.Category], a.Amount.InexactFloat64())
		case a.Month == current:
			currentSpend[a.Category] = a.Amount
		}
	}
	if len(historical) == 0 || len(currentSpend) == 0 {
		return report
	}
	report.Status = StatusOK

	for category, amount := range currentSpend {
		hist, ok := historical[category]
		if !ok {
			continue
		}
		avg := meanOf(hist)
		if avg <= 0 {
			continue
		}
		cur := amount.InexactFloat64()
		if cur <= avg*thresholdFactor {
			continue
		}
		report.Anomalies = append(report.Anomalies, Anomaly{
			Category:        category,
			CurrentAmount:   cur,
			AverageAmount:   avg,
			PercentIncrease: (cur - avg) / avg * 100,
		})
	}

	sort.Slice(report.Anomalies, func(i, j int) bool {
		a, b := report.Anomalies[i], report.Anomalies[j]
		if a.PercentIncrease != b.PercentIncrease {
			return a.PercentIncrease > b.PercentIncrease
		}
		return a.Category < b.Category
	})
	return report
}
