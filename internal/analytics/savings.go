package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Reason explains the outcome of a savings projection.
type Reason string

const (
	ReasonInsufficientData Reason = "insufficient_data"
	ReasonMissingSide      Reason = "missing_income_or_expense"
	ReasonZeroIncome       Reason = "zero_income"
	ReasonOnTarget         Reason = "already_on_target"
	ReasonReduceExpenses   Reason = "reduce_expenses"
	ReasonNotAchievable    Reason = "not_achievable"
)

// SavingsProjection reports whether a monthly savings target is reachable
// from recent income and spending. Percentages are relative to average
// income unless noted.
type SavingsProjection struct {
	Feasible          bool    `json:"feasible"`
	Reason            Reason  `json:"reason"`
	MonthsUsed        int     `json:"months_used"`
	Target            float64 `json:"target"`
	AvgIncome         float64 `json:"avg_income"`
	AvgExpenses       float64 `json:"avg_expenses"`
	AvgBalance        float64 `json:"avg_balance"`
	SavingsPercent    float64 `json:"savings_percent"`
	ExpensesPercent   float64 `json:"expenses_percent"`
	RequiredReduction float64 `json:"required_reduction"`
	// ReductionPercent is relative to average expenses.
	ReductionPercent  float64 `json:"reduction_percent"`
	NewExpenseTarget  float64 `json:"new_expense_target"`
	NewExpensePercent float64 `json:"new_expense_percent"`
}

// ProjectSavings averages income, expenses and balance over the last six
// months present in the ledger (a month missing one side counts it as zero)
// and works out what cut in spending would reach monthlyTarget.
func ProjectSavings(ledger core.Ledger, monthlyTarget float64) SavingsProjection {
	p := SavingsProjection{Target: monthlyTarget, Reason: ReasonInsufficientData}
	if len(ledger) == 0 {
		return p
	}

	type totals struct{ income, expense decimal.Decimal }
	byMonth := make(map[core.Month]*totals)
	var hasIncome, hasExpense bool
	for _, t := range ledger {
		m := t.Date.Month()
		tot, ok := byMonth[m]
		if !ok {
			tot = &totals{}
			byMonth[m] = tot
		}
		if t.Type == core.Income {
			tot.income = tot.income.Add(t.AmountLocal())
			hasIncome = true
		} else {
			tot.expense = tot.expense.Add(t.AmountLocal())
			hasExpense = true
		}
	}
	if !hasIncome || !hasExpense {
		p.Reason = ReasonMissingSide
		return p
	}

	months := make([]core.Month, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	if len(months) > baselineMonths {
		months = months[len(months)-baselineMonths:]
	}
	if len(months) < MinMonths {
		return p
	}
	p.MonthsUsed = len(months)

	var incomes, expenses []float64
	for _, m := range months {
		incomes = append(incomes, byMonth[m].income.InexactFloat64())
		expenses = append(expenses, byMonth[m].expense.InexactFloat64())
	}
	p.AvgIncome = meanOf(incomes)
	p.AvgExpenses = meanOf(expenses)
	p.AvgBalance = p.AvgIncome - p.AvgExpenses

	if p.AvgIncome <= 0 {
		p.Reason = ReasonZeroIncome
		return p
	}
	p.SavingsPercent = monthlyTarget / p.AvgIncome * 100
	p.ExpensesPercent = p.AvgExpenses / p.AvgIncome * 100

	if p.AvgBalance >= monthlyTarget {
		p.Feasible = true
		p.Reason = ReasonOnTarget
		p.NewExpenseTarget = p.AvgExpenses
		p.NewExpensePercent = p.ExpensesPercent
		return p
	}

	p.RequiredReduction = monthlyTarget - p.AvgBalance
	p.NewExpenseTarget = p.AvgExpenses - p.RequiredReduction
	p.NewExpensePercent = p.NewExpenseTarget / p.AvgIncome * 100
	if p.AvgExpenses > 0 {
		p.ReductionPercent = p.RequiredReduction / p.AvgExpenses * 100
	}

	// Spending cannot drop below zero, so a target above income is out of reach.
	if p.AvgIncome > p.NewExpenseTarget && p.NewExpenseTarget >= 0 {
		p.Feasible = true
		p.Reason = ReasonReduceExpenses
	} else {
		p.Reason = ReasonNotAchievable
	}
	return p
}
