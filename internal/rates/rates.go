// Package rates fetches foreign currency quotes, caches them and keeps a
// history of every successful fetch.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	ports "fintrack/internal/sheets"
)

const (
	DefaultURL            = "https://api.bluelytics.com.ar/v2/latest"
	DefaultCardTaxPercent = 60.0
	DefaultCacheTTL       = time.Hour
	DefaultHistoryDays    = 30

	latestKey = "latest"
	source    = "bluelytics"
)

// ErrNoRate is returned when the provider fails and no quote was ever stored.
var ErrNoRate = errors.New("no exchange rate available")

// RateSource yields the current quote.
type RateSource interface {
	Current(ctx context.Context) (core.RateQuote, error)
}

type Options struct {
	URL            string
	CardTaxPercent float64
	CacheTTL       time.Duration
	HTTPClient     *http.Client
	Now            func() time.Time
}

// Service is a RateSource backed by an HTTP provider, an in-process cache
// and the rate history store.
type Service struct {
	url     string
	tax     float64
	client  *http.Client
	history ports.RateHistory
	cache   *cache.LRUCache[core.RateQuote]
	group   singleflight.Group
	now     func() time.Time
}

var _ RateSource = (*Service)(nil)

func New(history ports.RateHistory, opts Options) *Service {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.CardTaxPercent < 0 {
		opts.CardTaxPercent = DefaultCardTaxPercent
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		url:     opts.URL,
		tax:     opts.CardTaxPercent,
		client:  opts.HTTPClient,
		history: history,
		cache:   cache.NewLRUCache[core.RateQuote](8, opts.CacheTTL, cache.WithClock(opts.Now)),
		now:     opts.Now,
	}
}

// Cleaner exposes the quote cache for periodic sweeping.
func (s *Service) Cleaner() cache.Cleaner { return s.cache }

// Current returns the cached quote or fetches a fresh one. Concurrent
// callers share a single fetch. When the provider fails the last stored
// quote is returned instead.
func (s *Service) Current(ctx context.Context) (core.RateQuote, error) {
	if q, ok := s.cache.Get(latestKey); ok {
		return q, nil
	}
	v, err, _ := s.group.Do(latestKey, func() (interface{}, error) {
		q, err := s.Refresh(ctx)
		if err == nil {
			return q, nil
		}
		slog.WarnContext(ctx, "Rate fetch failed, using last stored quote",
			applog.FieldComponent, applog.ComponentRates,
			applog.FieldError, err)
		last, herr := s.history.LatestRate(ctx)
		if errors.Is(herr, core.ErrNotFound) {
			return core.RateQuote{}, fmt.Errorf("%w: %v", ErrNoRate, err)
		}
		if herr != nil {
			return core.RateQuote{}, fmt.Errorf("load stored rate: %w", herr)
		}
		return last, nil
	})
	if err != nil {
		return core.RateQuote{}, err
	}
	return v.(core.RateQuote), nil
}

// Refresh fetches from the provider, records the quote and primes the cache.
func (s *Service) Refresh(ctx context.Context) (core.RateQuote, error) {
	q, err := s.fetch(ctx)
	if err != nil {
		return core.RateQuote{}, err
	}
	if err := s.history.SaveRate(ctx, q); err != nil {
		slog.ErrorContext(ctx, "Failed to store rate quote", applog.FieldComponent, applog.ComponentRates, applog.FieldError, err)
	}
	s.cache.Set(latestKey, q)
	slog.InfoContext(ctx, "Exchange rate refreshed",
		applog.FieldComponent, applog.ComponentRates,
		"official", q.Official.String(),
		"card", q.Card.String(),
		"blue", q.Blue.String())
	return q, nil
}

// History returns the stored quotes of the last days days, oldest first.
func (s *Service) History(ctx context.Context, days int) ([]core.RateQuote, error) {
	if days < 1 {
		days = DefaultHistoryDays
	}
	since := core.DateOf(s.now()).AddDays(-(days - 1))
	return s.history.RateHistory(ctx, since)
}

type latestResponse struct {
	Oficial struct {
		ValueSell decimal.Decimal `json:"value_sell"`
	} `json:"oficial"`
	Blue struct {
		ValueSell decimal.Decimal `json:"value_sell"`
	} `json:"blue"`
}

func (s *Service) fetch(ctx context.Context) (core.RateQuote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return core.RateQuote{}, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return core.RateQuote{}, fmt.Errorf("request rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.RateQuote{}, fmt.Errorf("rates provider returned %d: %s", resp.StatusCode, b)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return core.RateQuote{}, fmt.Errorf("decode rates: %w", err)
	}
	if !body.Oficial.ValueSell.IsPositive() {
		return core.RateQuote{}, errors.New("rates provider returned no official rate")
	}

	now := s.now()
	return core.RateQuote{
		Date:      core.DateOf(now),
		Official:  body.Oficial.ValueSell,
		Card:      core.CardRate(body.Oficial.ValueSell, s.tax),
		Blue:      body.Blue.ValueSell,
		Source:    source,
		FetchedAt: now.UTC(),
	}, nil
}
