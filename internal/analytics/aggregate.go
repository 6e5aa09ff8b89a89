package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// MonthlyAggregate is the local-currency total of one category in one month.
type MonthlyAggregate struct {
	Month    core.Month      `json:"month"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// AggregateMonthly sums the local amounts of every transaction of type tt by
// (month, category). The result is ordered by month, then category.
func AggregateMonthly(ledger core.Ledger, tt core.TransactionType) []MonthlyAggregate {
	type key struct {
		month    core.Month
		category string
	}
	sums := make(map[key]decimal.Decimal)
	for _, t := range ledger {
		if t.Type != tt {
			continue
		}
		k := key{t.Date.Month(), t.Category}
		sums[k] = sums[k].Add(t.AmountLocal())
	}

	out := make([]MonthlyAggregate, 0, len(sums))
	for k, v := range sums {
		out = append(out, MonthlyAggregate{Month: k.month, Category: k.category, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// categorySeries holds a category's monthly sums in month order.
type categorySeries struct {
	category string
	months   []core.Month
	amounts  []float64
}

// seriesByCategory regroups aggregates per category, keeping month order and
// returning categories sorted by name.
func seriesByCategory(aggs []MonthlyAggregate) []categorySeries {
	idx := make(map[string]int)
	var out []categorySeries
	for _, a := range aggs {
		i, ok := idx[a.Category]
		if !ok {
			i = len(out)
			idx[a.Category] = i
			out = append(out, categorySeries{category: a.Category})
		}
		out[i].months = append(out[i].months, a.Month)
		out[i].amounts = append(out[i].amounts, a.Amount.InexactFloat64())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].category < out[j].category })
	return out
}

// distinctMonths returns the months present in aggs, oldest first.
func distinctMonths(aggs []MonthlyAggregate) []core.Month {
	var out []core.Month
	for _, a := range aggs {
		if n := len(out); n == 0 || out[n-1] != a.Month {
			out = append(out, a.Month)
		}
	}
	return out
}

// fitLine fits y = intercept + slope*x by ordinary least squares with
// x = 0..len(ys)-1. Fewer than two points give a flat line through the mean.
func fitLine(ys []float64) (intercept, slope float64) {
	n := float64(len(ys))
	if len(ys) == 0 {
		return 0, 0
	}
	mean := meanOf(ys)
	if len(ys) < 2 {
		return mean, 0
	}
	xMean := (n - 1) / 2
	var num, den float64
	for i, y := range ys {
		dx := float64(i) - xMean
		num += dx * (y - mean)
		den += dx * dx
	}
	slope = num / den
	return mean - slope*xMean, slope
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
