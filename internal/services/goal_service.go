package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	ports "fintrack/internal/sheets"
)

// GoalService manages savings goals.
type GoalService struct {
	store ports.GoalStore
	now   func() time.Time
}

func NewGoalService(store ports.GoalStore, now func() time.Time) *GoalService {
	if now == nil {
		now = time.Now
	}
	return &GoalService{store: store, now: now}
}

// GoalView is a goal with its progress percentage.
type GoalView struct {
	core.Goal
	Progress  float64         `json:"progress"`
	Remaining decimal.Decimal `json:"remaining"`
}

func viewOf(g core.Goal) GoalView {
	rem := g.TargetAmount.Sub(g.CurrentAmount)
	if rem.IsNegative() {
		rem = decimal.Zero
	}
	return GoalView{Goal: g, Progress: g.Progress(), Remaining: rem}
}

// Create stores a new goal. A missing start date is today and a missing
// target date is one year later.
func (s *GoalService) Create(ctx context.Context, g core.Goal) (GoalView, error) {
	g.ID = 0
	if g.Currency == "" {
		g.Currency = core.Local
	}
	if g.StartDate.IsZero() {
		g.StartDate = core.DateOf(s.now())
	}
	if g.TargetDate.IsZero() {
		g.TargetDate = g.StartDate.AddDays(365)
	}
	g = g.WithProgress(g.CurrentAmount)
	if err := g.Validate(); err != nil {
		return GoalView{}, err
	}
	saved, err := s.store.SaveGoal(ctx, g)
	if err != nil {
		return GoalView{}, fmt.Errorf("save goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal created", applog.FieldComponent, applog.ComponentGoals, "id", saved.ID, "type", saved.Type)
	return viewOf(saved), nil
}

// UpdateProgress sets the saved amount and recomputes the status.
func (s *GoalService) UpdateProgress(ctx context.Context, id int64, current decimal.Decimal) (GoalView, error) {
	g, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return GoalView{}, err
	}
	g = g.WithProgress(current)
	if err := g.Validate(); err != nil {
		return GoalView{}, err
	}
	saved, err := s.store.SaveGoal(ctx, g)
	if err != nil {
		return GoalView{}, fmt.Errorf("update goal %d: %w", id, err)
	}
	if saved.Status == core.GoalCompleted {
		slog.InfoContext(ctx, "Goal reached", applog.FieldComponent, applog.ComponentGoals, "id", id)
	}
	return viewOf(saved), nil
}

func (s *GoalService) Get(ctx context.Context, id int64) (GoalView, error) {
	g, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return GoalView{}, err
	}
	return viewOf(g), nil
}

func (s *GoalService) List(ctx context.Context) ([]GoalView, error) {
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	out := make([]GoalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, viewOf(g))
	}
	return out, nil
}

func (s *GoalService) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteGoal(ctx, id)
}
