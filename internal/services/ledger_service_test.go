package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets/memory"
)

func TestLedgerServiceWritesPublishEvents(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(nil, nil), pub)

	in := tx(core.NewDate(2024, 3, 10), core.Expense, "Travel", 20)
	in.Currency = core.Foreign
	in.ExchangeRate = decimal.NewFromInt(1000)
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)

	created.Amount = decimal.NewFromInt(25)
	_, err = svc.Update(ctx, created)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))

	require.Len(t, pub.events, 3)
	assert.Equal(t, amqp.EventCreated, pub.events[0].Kind)
	assert.Equal(t, created.ID, pub.events[0].TransactionID)
	assert.True(t, pub.events[0].AmountLocal.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, amqp.EventUpdated, pub.events[1].Kind)
	assert.True(t, pub.events[1].AmountLocal.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, amqp.EventDeleted, pub.events[2].Kind)
	assert.NotEqual(t, pub.events[0].EventID, pub.events[1].EventID)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedgerServiceRejectsInvalidInput(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(nil, nil), pub)

	_, err := svc.Create(context.Background(), tx(core.NewDate(2024, 3, 10), core.Expense, "Food", 0))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.Create(context.Background(), tx(core.NewDate(2024, 3, 10), core.Expense, "", 5))
	assert.ErrorIs(t, err, core.ErrMissingCategory)
	assert.Empty(t, pub.events)
}

func TestLedgerServicePublishFailureKeepsWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil, nil)
	svc := NewLedgerService(store, &fakePublisher{err: errors.New("broker down")})

	created, err := svc.Create(ctx, tx(core.NewDate(2024, 3, 10), core.Expense, "Food", 5))
	require.NoError(t, err)

	got, err := store.GetTransaction(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Food", got.Category)
}

func TestLedgerServiceWithoutPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(nil, nil), nil)
	_, err := svc.Create(context.Background(), tx(core.NewDate(2024, 3, 10), core.Income, "Salary", 5))
	require.NoError(t, err)
	assert.NoError(t, svc.Close())
}

func TestLedgerServiceSuggest(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(nil, nil), nil)
	for i := 1; i <= 3; i++ {
		in := tx(core.NewDate(2024, i, 5), core.Expense, "Food", 40)
		in.Description = "Supermarket weekly groceries"
		in.PaymentMethod = core.DebitCard
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	sg, ok, err := svc.Suggest(ctx, "groceries at the supermarket")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Food", sg.Category)
	assert.Equal(t, core.DebitCard, sg.PaymentMethod)
	assert.GreaterOrEqual(t, sg.Confidence, 0.3)

	_, ok, err = svc.Suggest(ctx, "cinema tickets")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerServiceInstallments(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(nil, nil), nil)
	in := tx(core.NewDate(2024, 1, 31), core.Expense, "Electronics", 300)
	in.PaymentMethod = core.CreditCard
	in.InstallmentsTotal = 3
	in.InstallmentsPaid = 1
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)

	lines, err := svc.Installments(ctx, created.ID, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.True(t, lines[0].Paid)
	assert.Equal(t, "2024-02-29", lines[1].DueDate.String())
	assert.True(t, lines[2].Amount.Equal(decimal.NewFromInt(100)))

	_, err = svc.Installments(ctx, 999, decimal.Zero)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedgerServiceCloseAggregatesErrors(t *testing.T) {
	pub := &fakePublisher{closeErr: errors.New("channel busy")}
	svc := NewLedgerService(memory.New(nil, nil), pub)

	err := svc.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publisher")
	assert.True(t, pub.closed)
}

func TestLedgerServiceImport(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	store := memory.New(nil, nil)
	svc := NewLedgerService(store, pub)

	accountID := int64(1)
	rows := core.Ledger{
		tx(core.NewDate(2024, 1, 5), core.Expense, "Food", 10),
		tx(core.NewDate(2024, 1, 6), core.Income, "Salary", 1000),
	}
	rows[0].ID = 99
	rows[0].AccountID = &accountID

	n, err := svc.Import(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, pub.events)

	ledger, err := store.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Nil(t, ledger[0].AccountID)
	assert.NotEqual(t, int64(99), ledger[0].ID)

	bad := core.Ledger{tx(core.NewDate(2024, 2, 1), core.Expense, "Food", 5), tx(core.NewDate(2024, 2, 2), core.Expense, "", 5)}
	n, err = svc.Import(ctx, bad)
	assert.ErrorIs(t, err, core.ErrMissingCategory)
	assert.Equal(t, 1, n)
}

func TestLedgerServiceLogsStandardComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	svc := NewLedgerService(memory.New(nil, nil), nil)
	_, err := svc.Import(context.Background(), core.Ledger{tx(core.NewDate(2024, 1, 5), core.Expense, "Food", 10)})
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == "Ledger imported" {
			found = true
			assert.Equal(t, applog.ComponentLedger, rec[applog.FieldComponent])
		}
	}
	assert.True(t, found, "no import record in %q", buf.String())
}
