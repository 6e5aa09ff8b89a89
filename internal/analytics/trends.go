package analytics

import (
	"math"
	"sort"
	"time"

	"fintrack/internal/core"
)

type (
	Direction string
	Strength  string
)

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Stable Direction = "stable"

	Weak     Strength = "weak"
	Moderate Strength = "moderate"
	Strong   Strength = "strong"
)

// Strength thresholds on the absolute monthly change percentage.
const (
	weakBelow     = 3.0
	moderateBelow = 10.0
)

// forecastDamping discounts the trend for each month further out.
const forecastDamping = 0.8

// TrendResult describes the fitted trend of one category's monthly spend.
type TrendResult struct {
	Direction            Direction `json:"direction"`
	MonthlyChangePercent float64   `json:"monthly_change_percent"`
	Strength             Strength  `json:"strength"`
	AvgMonthlyAmount     float64   `json:"avg_monthly_amount"`
}

type CategoryTrend struct {
	Category string `json:"category"`
	TrendResult
}

// TrendReport partitions the non-weak trends by direction. All keeps every
// category that had at least two months of data.
type TrendReport struct {
	Status     Status                 `json:"status"`
	All        map[string]TrendResult `json:"all"`
	Increasing []CategoryTrend        `json:"increasing"`
	Decreasing []CategoryTrend        `json:"decreasing"`
}

// ForecastPoint is the projected spend of one category in a future month.
type ForecastPoint struct {
	Month    core.Month `json:"month"`
	Category string     `json:"category"`
	Amount   float64    `json:"amount"`
}

type ForecastReport struct {
	Status   Status          `json:"status"`
	Baseline []core.Month    `json:"baseline_months"`
	Points   []ForecastPoint `json:"points"`
}

func classify(pct float64) Strength {
	switch abs := math.Abs(pct); {
	case abs < weakBelow:
		return Weak
	case abs < moderateBelow:
		return Moderate
	default:
		return Strong
	}
}

// AnalyzeExpenseTrends fits a least-squares line through each expense
// category's monthly totals. The x axis is the index of the category's own
// data points, so months without spending in a category are skipped rather
// than counted as zero.
func AnalyzeExpenseTrends(ledger core.Ledger) TrendReport {
	report := TrendReport{Status: StatusInsufficientData, All: map[string]TrendResult{}}

	aggs := AggregateMonthly(ledger, core.Expense)
	if len(distinctMonths(aggs)) < MinMonths {
		return report
	}
	report.Status = StatusOK

	for _, s := range seriesByCategory(aggs) {
		if len(s.amounts) < 2 {
			continue
		}
		_, slope := fitLine(s.amounts)
		avg := meanOf(s.amounts)

		dir := Stable
		if slope > 0 {
			dir = Up
		} else if slope < 0 {
			dir = Down
		}
		var pct float64
		if avg > 0 {
			pct = slope / avg * 100
		}

		res := TrendResult{
			Direction:            dir,
			MonthlyChangePercent: pct,
			Strength:             classify(pct),
			AvgMonthlyAmount:     avg,
		}
		report.All[s.category] = res

		if res.Strength == Weak {
			continue
		}
		switch dir {
		case Up:
			report.Increasing = append(report.Increasing, CategoryTrend{s.category, res})
		case Down:
			report.Decreasing = append(report.Decreasing, CategoryTrend{s.category, res})
		}
	}

	sort.SliceStable(report.Increasing, func(i, j int) bool {
		return report.Increasing[i].MonthlyChangePercent > report.Increasing[j].MonthlyChangePercent
	})
	sort.SliceStable(report.Decreasing, func(i, j int) bool {
		return report.Decreasing[i].MonthlyChangePercent < report.Decreasing[j].MonthlyChangePercent
	})
	return report
}

// ForecastSpending projects each expense category monthsAhead months past
// now's month. The baseline is the last six months with expense data (fewer
// if the ledger is younger); a category's base amount is the mean of its
// monthly totals in the baseline and the trend factor for step i is
// 1 + slope*0.8^i.
func ForecastSpending(ledger core.Ledger, monthsAhead int, now time.Time) ForecastReport {
	report := ForecastReport{Status: StatusInsufficientData}

	aggs := AggregateMonthly(ledger, core.Expense)
	months := distinctMonths(aggs)
	if len(months) < MinMonths {
		return report
	}
	report.Status = StatusOK
	if len(months) > baselineMonths {
		months = months[len(months)-baselineMonths:]
	}
	report.Baseline = months

	first := months[0]
	var window []MonthlyAggregate
	for _, a := range aggs {
		if !a.Month.Before(first) {
			window = append(window, a)
		}
	}

	type basis struct {
		category string
		base     float64
		slope    float64
	}
	var bases []basis
	for _, s := range seriesByCategory(window) {
		_, slope := fitLine(s.amounts)
		bases = append(bases, basis{s.category, meanOf(s.amounts), slope})
	}

	current := core.MonthOf(now)
	for i := 1; i <= monthsAhead; i++ {
		damp := math.Pow(forecastDamping, float64(i))
		month := current.AddMonths(i)
		for _, b := range bases {
			report.Points = append(report.Points, ForecastPoint{
				Month:    month,
				Category: b.category,
				Amount:   b.base * (1 + b.slope*damp),
			})
		}
	}
	return report
}
