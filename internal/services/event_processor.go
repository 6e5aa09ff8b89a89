package services

import (
	"context"
	"log/slog"
	"sync/atomic"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// EventProcessor reacts to ledger events published by other processes by
// re-running the anomaly check for the month and category touched.
type EventProcessor struct {
	reports   *ReportService
	processed atomic.Int64
	flagged   atomic.Int64
}

func NewEventProcessor(reports *ReportService) *EventProcessor {
	return &EventProcessor{reports: reports}
}

// Handle returns an error only when the ledger could not be read, so that
// the event is redelivered.
func (p *EventProcessor) Handle(ctx context.Context, e amqp.LedgerEvent) error {
	defer p.processed.Add(1)

	if e.Type != core.Expense {
		slog.DebugContext(ctx, "Ignoring non-expense ledger event",
			applog.FieldComponent, applog.ComponentEvents, "event_id", e.EventID, "type", e.Type)
		return nil
	}
	if e.Date.Month() != core.MonthOf(p.reports.now()) {
		slog.DebugContext(ctx, "Ledger event outside the current month",
			applog.FieldComponent, applog.ComponentEvents, "event_id", e.EventID, "date", e.Date.String())
		return nil
	}

	report, err := p.reports.Anomalies(ctx, 0)
	if err != nil {
		return err
	}
	if report.Status != analytics.StatusOK {
		return nil
	}
	for _, a := range report.Anomalies {
		if a.Category != e.Category {
			continue
		}
		p.flagged.Add(1)
		slog.WarnContext(ctx, "Unusual spending detected",
			applog.FieldComponent, applog.ComponentEvents,
			"event_id", e.EventID,
			"kind", e.Kind,
			"category", a.Category,
			"month", report.Month.String(),
			"current", a.CurrentAmount,
			"average", a.AverageAmount,
			"percent_increase", a.PercentIncrease)
		return nil
	}
	slog.InfoContext(ctx, "Ledger event processed", applog.FieldComponent, applog.ComponentEvents, "event_id", e.EventID, "category", e.Category)
	return nil
}

// Processed is the number of events handled so far.
func (p *EventProcessor) Processed() int64 { return p.processed.Load() }

// Flagged is the number of events that triggered an anomaly.
func (p *EventProcessor) Flagged() int64 { return p.flagged.Load() }
