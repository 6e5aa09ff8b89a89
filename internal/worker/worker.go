// Package worker runs the background side of fintrack: it consumes ledger
// events from the broker and refreshes exchange rates on a cron schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const (
	defaultSchedule       = "@hourly"
	defaultRefreshTimeout = 30 * time.Second
	defaultEventTimeout   = 15 * time.Second
)

// EventSource delivers ledger events until ctx is done.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler amqp.Handler) error
}

type EventHandler interface {
	Handle(ctx context.Context, e amqp.LedgerEvent) error
}

// RateRefresher fetches and stores a fresh exchange rate quote.
type RateRefresher interface {
	Refresh(ctx context.Context) (core.RateQuote, error)
}

// Config wires the worker. Events and Rates may each be nil, which disables
// that half of the worker.
type Config struct {
	Events         EventSource
	Handler        EventHandler
	Rates          RateRefresher
	Schedule       string
	RefreshTimeout time.Duration
	EventTimeout   time.Duration
	Logger         *applog.Logger
}

// Worker owns the consumer loop and the rate refresh schedule.
type Worker struct {
	cfg       Config
	logger    *applog.Logger
	scheduler *cron.Cron
	refreshes atomic.Int64
	failures  atomic.Int64
	events    atomic.Int64
}

func New(cfg Config) (*Worker, error) {
	if cfg.Events != nil && cfg.Handler == nil {
		return nil, errors.New("event source configured without a handler")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = defaultEventTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentWorker)

	w := &Worker{cfg: cfg, logger: logger}
	cronLog := cronLogger{logger: logger}
	w.scheduler = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if cfg.Rates != nil {
		if _, err := w.scheduler.AddFunc(cfg.Schedule, w.refreshRates); err != nil {
			return nil, fmt.Errorf("rate refresh schedule %q: %w", cfg.Schedule, err)
		}
	}
	return w, nil
}

// Run refreshes rates once, starts the schedule and consumes events until ctx
// is done. A done context is not reported as an error.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Worker starting",
		"events", w.cfg.Events != nil,
		"rates", w.cfg.Rates != nil,
		"schedule", w.cfg.Schedule)

	if w.cfg.Rates != nil {
		w.refreshRates()
		w.scheduler.Start()
		defer func() {
			<-w.scheduler.Stop().Done()
		}()
	}

	var err error
	if w.cfg.Events != nil {
		err = w.cfg.Events.ConsumeLedgerEvents(ctx, w.handle)
	} else {
		<-ctx.Done()
	}
	if err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Event consumption failed", applog.FieldError, err.Error())
		return err
	}
	w.logger.Info("Worker stopped",
		"events_handled", w.events.Load(),
		"rate_refreshes", w.refreshes.Load(),
		"rate_failures", w.failures.Load())
	return nil
}

func (w *Worker) handle(ctx context.Context, e amqp.LedgerEvent) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.EventTimeout)
	defer cancel()

	logger := w.logger.With("event_id", e.EventID.String(), "kind", string(e.Kind))
	if err := w.cfg.Handler.Handle(ctx, e); err != nil {
		logger.ErrorContext(ctx, "Ledger event failed, requeueing", applog.FieldError, err.Error())
		return err
	}
	w.events.Add(1)
	logger.DebugContext(ctx, "Ledger event handled", applog.FieldTransactionID, e.TransactionID)
	return nil
}

func (w *Worker) refreshRates() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.RefreshTimeout)
	defer cancel()

	q, err := w.cfg.Rates.Refresh(ctx)
	if err != nil {
		w.failures.Add(1)
		w.logger.ErrorContext(ctx, "Rate refresh failed", applog.FieldOperation, applog.OpRefresh, applog.FieldError, err.Error())
		return
	}
	w.refreshes.Add(1)
	w.logger.InfoContext(ctx, "Rates refreshed",
		applog.FieldOperation, applog.OpRefresh,
		"official", q.Official.String(),
		"card", q.Card.String(),
		"blue", q.Blue.String())
}

// Stats reports how many events and refreshes have run.
type Stats struct {
	EventsHandled   int64
	RateRefreshes   int64
	RefreshFailures int64
}

func (w *Worker) Stats() Stats {
	return Stats{
		EventsHandled:   w.events.Load(),
		RateRefreshes:   w.refreshes.Load(),
		RefreshFailures: w.failures.Load(),
	}
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct {
	logger *applog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, applog.FieldError, err.Error())...)
}
