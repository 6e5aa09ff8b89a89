package cli

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/services"
)

// App holds the services built from one configuration.
type App struct {
	Config  *config.Config
	Logger  *applog.Logger
	Store   backend.Backend
	Ledger  *services.LedgerService
	Reports *services.ReportService
	Goals   *services.GoalService
	Rates   *rates.Service
	Caches  *cache.Manager

	cleanup backend.CleanupFunc
}

// Options customise NewApp for tests.
type Options struct {
	Factory backend.Factory
	Now     func() time.Time
}

// NewApp creates the backend and the services on top of it.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts Options) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := opts.Factory
	if factory == nil {
		factory = backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	}
	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	reportOpts := services.DefaultReportOptions()
	reportOpts.AnomalyThreshold = cfg.AnomalyThreshold
	reportOpts.ForecastMonths = cfg.ForecastMonths

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   res.Backend,
		Ledger:  services.NewLedgerService(res.Backend, res.Publisher),
		Reports: services.NewReportService(res.Backend, reportOpts, now),
		Goals:   services.NewGoalService(res.Backend, now),
		Rates: rates.New(res.Backend, rates.Options{
			URL:            cfg.RatesURL,
			CardTaxPercent: cfg.CardTaxPercent,
			CacheTTL:       cfg.RatesCacheTTL,
			Now:            now,
		}),
		Caches:  cache.NewManager(),
		cleanup: res.Cleanup,
	}
	app.Caches.Register(app.Rates.Cleaner())
	return app, nil
}

// Close releases the backend and the event publisher.
func (a *App) Close() error {
	if a.cleanup == nil {
		return nil
	}
	err := a.cleanup()
	a.cleanup = nil
	if err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}
