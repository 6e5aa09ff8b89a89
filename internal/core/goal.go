package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GoalSavings    GoalType = "savings"
	GoalInvestment GoalType = "investment"
	GoalPurchase   GoalType = "purchase"
	GoalDebt       GoalType = "debt"
	GoalEducation  GoalType = "education"
	GoalTravel     GoalType = "travel"
	GoalHousing    GoalType = "housing"
	GoalEmergency  GoalType = "emergency"
	GoalOther      GoalType = "other"
)

const (
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
)

var ErrInvalidGoalType = errors.New("invalid goal type")

type (
	GoalType   string
	GoalStatus string
)

// Goal is a savings target tracked against a running current amount.
type Goal struct {
	ID            int64
	Name          string
	Description   string
	Type          GoalType
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	Currency      Currency
	StartDate     Date
	TargetDate    Date
	Category      string
	Status        GoalStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (t GoalType) Valid() bool {
	switch t {
	case GoalSavings, GoalInvestment, GoalPurchase, GoalDebt, GoalEducation,
		GoalTravel, GoalHousing, GoalEmergency, GoalOther:
		return true
	}
	return false
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrMissingName
	}
	if !g.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGoalType, g.Type)
	}
	if !g.TargetAmount.IsPositive() {
		return fmt.Errorf("target: %w", ErrInvalidAmount)
	}
	if g.CurrentAmount.IsNegative() {
		return fmt.Errorf("current: %w", ErrInvalidAmount)
	}
	if !g.Currency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, g.Currency)
	}
	if err := g.StartDate.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if err := g.TargetDate.Validate(); err != nil {
		return fmt.Errorf("target date: %w", err)
	}
	if g.TargetDate.Before(g.StartDate.Time) {
		return fmt.Errorf("%w: target date before start date", ErrInvalidDate)
	}
	return nil
}

// Progress is the completed percentage, capped at 100. A goal without a
// positive target counts as complete.
func (g Goal) Progress() float64 {
	if !g.TargetAmount.IsPositive() {
		return 100
	}
	p := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).InexactFloat64()
	if p > 100 {
		return 100
	}
	return p
}

// WithProgress sets the current amount and recomputes the status.
func (g Goal) WithProgress(current decimal.Decimal) Goal {
	g.CurrentAmount = current
	g.Status = GoalInProgress
	if g.Progress() >= 100 {
		g.Status = GoalCompleted
	}
	return g
}
