package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	ports "fintrack/internal/sheets"
)

// EventPublisher sends ledger events to other processes.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, e amqp.LedgerEvent) error
	Close() error
}

// LedgerStore is the part of a backend the ledger service writes to.
type LedgerStore interface {
	ports.TransactionStore
	ports.TaxonomyReader
}

// LedgerService validates and persists transactions and announces every
// successful write. Publishing is best effort: a failed publish is logged
// and never undoes the write.
type LedgerService struct {
	store     LedgerStore
	publisher EventPublisher
	now       func() time.Time
}

func NewLedgerService(store LedgerStore, publisher EventPublisher) *LedgerService {
	return &LedgerService{store: store, publisher: publisher, now: time.Now}
}

func (s *LedgerService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	saved, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.publish(ctx, amqp.EventCreated, saved)
	return saved, nil
}

func (s *LedgerService) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	saved, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	s.publish(ctx, amqp.EventUpdated, saved)
	return saved, nil
}

func (s *LedgerService) Delete(ctx context.Context, id int64) error {
	removed, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	s.publish(ctx, amqp.EventDeleted, removed)
	return nil
}

// Import stores rows read from an external ledger, such as a spreadsheet.
// Imports are bulk loads and publish no events. It stops at the first
// invalid row and returns how many rows were stored before it.
func (s *LedgerService) Import(ctx context.Context, ledger core.Ledger) (int, error) {
	n := 0
	for i, t := range ledger {
		t.ID = 0
		t.AccountID = nil
		t = t.Normalize()
		if err := t.Validate(); err != nil {
			return n, fmt.Errorf("row %d: %w", i+1, err)
		}
		if _, err := s.store.CreateTransaction(ctx, t); err != nil {
			return n, fmt.Errorf("import row %d: %w", i+1, err)
		}
		n++
	}
	slog.InfoContext(ctx, "Ledger imported", applog.FieldComponent, applog.ComponentLedger, "rows", n)
	return n, nil
}

func (s *LedgerService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *LedgerService) List(ctx context.Context, f core.Filter) (core.Ledger, error) {
	return s.store.ListTransactions(ctx, f)
}

func (s *LedgerService) Categories(ctx context.Context, tt core.TransactionType) ([]string, error) {
	return s.store.Categories(ctx, tt)
}

// Installments returns the payment schedule of one transaction. A zero
// currentRate values foreign amounts at the recorded rate.
func (s *LedgerService) Installments(ctx context.Context, id int64, currentRate decimal.Decimal) ([]analytics.InstallmentLine, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return analytics.ScheduleInstallments(t, currentRate)
}

// Suggest proposes a category for description. ok is false when nothing in
// the ledger is similar enough or the best match is below the confidence
// threshold.
func (s *LedgerService) Suggest(ctx context.Context, description string) (analytics.Suggestion, bool, error) {
	ledger, err := s.store.Ledger(ctx)
	if err != nil {
		return analytics.Suggestion{}, false, fmt.Errorf("load ledger: %w", err)
	}
	sg, ok := analytics.SuggestCategory(ledger, description)
	if !ok || sg.Confidence < analytics.ConfidenceThreshold {
		return sg, false, nil
	}
	return sg, true, nil
}

func (s *LedgerService) publish(ctx context.Context, kind amqp.EventKind, t core.Transaction) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping ledger event",
			applog.FieldComponent, applog.ComponentLedger, "kind", kind, applog.FieldTransactionID, t.ID)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(kind, t, s.now())); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			applog.FieldComponent, applog.ComponentLedger, "kind", kind, applog.FieldTransactionID, t.ID, applog.FieldError, err)
	}
}

// Close closes the publisher and, when it owns resources, the store.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
