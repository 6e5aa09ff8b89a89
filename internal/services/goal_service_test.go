package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/sheets/memory"
)

func TestGoalServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewGoalService(memory.New(nil, nil), fixedClock(2024, 6, 1))

	g, err := svc.Create(ctx, core.Goal{
		Name:          "Emergency fund",
		Type:          core.GoalEmergency,
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.NewFromInt(250),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", g.StartDate.String())
	assert.Equal(t, "2025-06-01", g.TargetDate.String())
	assert.Equal(t, core.Local, g.Currency)
	assert.Equal(t, core.GoalInProgress, g.Status)
	assert.InDelta(t, 25, g.Progress, 1e-9)
	assert.True(t, g.Remaining.Equal(decimal.NewFromInt(750)))

	g, err = svc.UpdateProgress(ctx, g.ID, decimal.NewFromInt(1200))
	require.NoError(t, err)
	assert.Equal(t, core.GoalCompleted, g.Status)
	assert.InDelta(t, 100, g.Progress, 1e-9)
	assert.True(t, g.Remaining.IsZero())

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, svc.Delete(ctx, g.ID))
	_, err = svc.Get(ctx, g.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGoalServiceValidation(t *testing.T) {
	svc := NewGoalService(memory.New(nil, nil), fixedClock(2024, 6, 1))
	ctx := context.Background()

	_, err := svc.Create(ctx, core.Goal{Type: core.GoalTravel, TargetAmount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, core.ErrMissingName)

	_, err = svc.Create(ctx, core.Goal{Name: "Trip", Type: "holiday", TargetAmount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, core.ErrInvalidGoalType)

	_, err = svc.UpdateProgress(ctx, 42, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, core.ErrNotFound)
}
