package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

type fakePublisher struct {
	mu       sync.Mutex
	events   []amqp.LedgerEvent
	err      error
	closeErr error
	closed   bool
}

func (p *fakePublisher) PublishLedgerEvent(_ context.Context, e amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return p.closeErr
}

type failingLedger struct{}

func (failingLedger) Ledger(context.Context) (core.Ledger, error) {
	return nil, errors.New("backend down")
}

func fixedClock(y, m, d int) func() time.Time {
	return func() time.Time { return time.Date(y, time.Month(m), d, 12, 0, 0, 0, time.UTC) }
}

func tx(date core.Date, tt core.TransactionType, category string, amount int64) core.Transaction {
	return core.Transaction{
		Date:     date,
		Type:     tt,
		Category: category,
		Amount:   decimal.NewFromInt(amount),
	}
}
