package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	ports "fintrack/internal/sheets"
)

// ReportOptions tunes the analytics a ReportService runs.
type ReportOptions struct {
	AnomalyThreshold float64
	ForecastMonths   int
	UpcomingMonths   int
}

func DefaultReportOptions() ReportOptions {
	return ReportOptions{
		AnomalyThreshold: analytics.DefaultAnomalyThreshold,
		ForecastMonths:   3,
		UpcomingMonths:   analytics.DefaultUpcomingMonths,
	}
}

// Dashboard bundles every report computed from one ledger snapshot.
type Dashboard struct {
	GeneratedAt time.Time                    `json:"generated_at"`
	Summary     analytics.Summary            `json:"summary"`
	Trends      analytics.TrendReport        `json:"trends"`
	Forecast    analytics.ForecastReport     `json:"forecast"`
	Anomalies   analytics.AnomalyReport      `json:"anomalies"`
	Upcoming    []analytics.UpcomingPayment  `json:"upcoming_installments"`
	Savings     *analytics.SavingsProjection `json:"savings,omitempty"`
}

// ReportService runs the analytics over a fresh snapshot of the ledger.
// The analytics are pure, so independent reports are computed concurrently.
type ReportService struct {
	ledger ports.LedgerReader
	opts   ReportOptions
	now    func() time.Time
}

func NewReportService(ledger ports.LedgerReader, opts ReportOptions, now func() time.Time) *ReportService {
	def := DefaultReportOptions()
	if opts.AnomalyThreshold <= 0 {
		opts.AnomalyThreshold = def.AnomalyThreshold
	}
	if opts.ForecastMonths < 1 {
		opts.ForecastMonths = def.ForecastMonths
	}
	if opts.UpcomingMonths < 1 {
		opts.UpcomingMonths = def.UpcomingMonths
	}
	if now == nil {
		now = time.Now
	}
	return &ReportService{ledger: ledger, opts: opts, now: now}
}

func (s *ReportService) snapshot(ctx context.Context) (core.Ledger, error) {
	l, err := s.ledger.Ledger(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

// Dashboard computes every report from a single snapshot. A nil
// savingsTarget skips the savings projection.
func (s *ReportService) Dashboard(ctx context.Context, savingsTarget *float64) (Dashboard, error) {
	ledger, err := s.snapshot(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	now := s.now()
	d := Dashboard{GeneratedAt: now.UTC()}

	var g errgroup.Group
	g.Go(func() error {
		d.Summary = analytics.Summarize(ledger)
		return nil
	})
	g.Go(func() error {
		d.Trends = analytics.AnalyzeExpenseTrends(ledger)
		return nil
	})
	g.Go(func() error {
		d.Forecast = analytics.ForecastSpending(ledger, s.opts.ForecastMonths, now)
		return nil
	})
	g.Go(func() error {
		d.Anomalies = analytics.DetectUnusualSpending(ledger, s.opts.AnomalyThreshold, now)
		return nil
	})
	g.Go(func() error {
		d.Upcoming = analytics.UpcomingInstallments(ledger, s.opts.UpcomingMonths, now)
		return nil
	})
	if savingsTarget != nil {
		g.Go(func() error {
			p := analytics.ProjectSavings(ledger, *savingsTarget)
			d.Savings = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	if err := ctx.Err(); err != nil {
		return Dashboard{}, err
	}

	slog.InfoContext(ctx, "Dashboard computed",
		applog.FieldComponent, applog.ComponentReports,
		"transactions", len(ledger),
		"anomalies", len(d.Anomalies.Anomalies),
		"upcoming", len(d.Upcoming))
	return d, nil
}

func (s *ReportService) Trends(ctx context.Context) (analytics.TrendReport, error) {
	ledger, err := s.snapshot(ctx)
	if err != nil {
		return analytics.TrendReport{}, err
	}
	return analytics.AnalyzeExpenseTrends(ledger), nil
}

// Forecast projects monthsAhead months; zero uses the configured default.
func (s *ReportService) Forecast(ctx context.Context, monthsAhead int) (analytics.ForecastReport, error) {
	ledger, err := s.snapshot(ctx)
	if err != nil {
		return analytics.ForecastReport{}, err
	}
	if monthsAhead < 1 {
		monthsAhead = s.opts.ForecastMonths
	}
	return analytics.ForecastSpending(ledger, monthsAhead, s.now()), nil
}

// Anomalies checks the current month; a non-positive threshold uses the
// configured one.
func (s *ReportService) Anomalies(ctx context.Context, threshold float64) (analytics.AnomalyReport, error) {
	ledger, err := s.snapshot(ctx)
	if err != nil {
		return analytics.AnomalyReport{}, err
	}
	if threshold <= 0 {
		threshold = s.opts.AnomalyThreshold
	}
	return analytics.DetectUnusualSpending(ledger, threshold, s.now()), nil
}

func (s *ReportService) Savings(ctx context.Context, monthlyTarget float64) (analytics.SavingsProjection, error) {
	ledger, err := s.snapshot(ctx)
	if err != nil {
		return analytics.SavingsProjection{}, err
	}
	return analytics.ProjectSavings(ledger, monthlyTarget), nil
}

func (s *ReportService) Upcoming(ctx context.Context, monthsAhead int) ([]analytics.UpcomingPayment, error) {
	ledger, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if monthsAhead < 1 {
		monthsAhead = s.opts.UpcomingMonths
	}
	return analytics.UpcomingInstallments(ledger, monthsAhead, s.now()), nil
}

func (s *ReportService) Summary(ctx context.Context) (analytics.Summary, error) {
	ledger, err := s.snapshot(ctx)
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(ledger), nil
}

// YearReport groups the per-year breakdowns.
type YearReport struct {
	Year       int                       `json:"year"`
	Months     []analytics.MonthBalance  `json:"months"`
	Categories []analytics.CategoryShare `json:"categories"`
	Fixed      analytics.FixedVariable   `json:"fixed_vs_variable"`
	Currencies []analytics.CurrencyTotal `json:"currencies"`
}

// Year builds the monthly balance and breakdowns of year; zero means the
// current year.
func (s *ReportService) Year(ctx context.Context, year int) (YearReport, error) {
	ledger, err := s.snapshot(ctx)
	if err != nil {
		return YearReport{}, err
	}
	if year == 0 {
		year = s.now().Year()
	}
	inYear := ledger.Filter(core.Filter{
		From: core.NewDate(year, 1, 1),
		To:   core.NewDate(year, 12, 31),
	})
	return YearReport{
		Year:       year,
		Months:     analytics.MonthlyBalance(ledger, year),
		Categories: analytics.CategoryBreakdown(ledger, year),
		Fixed:      analytics.FixedVsVariable(ledger, year),
		Currencies: analytics.CurrencyBreakdown(inYear),
	}, nil
}
