// Package http serves the fintrack JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	ports "fintrack/internal/sheets"
)

const (
	dashboardCacheTTL  = time.Minute
	dashboardCacheSize = 16
	cleanupInterval    = 5 * time.Minute
)

type requestIDKey struct{}

// RateReader is the exchange rate surface the API exposes.
type RateReader interface {
	Current(ctx context.Context) (core.RateQuote, error)
	History(ctx context.Context, days int) ([]core.RateQuote, error)
}

// Deps are the services behind the API. Rates and Ready are optional.
type Deps struct {
	Ledger   *services.LedgerService
	Reports  *services.ReportService
	Goals    *services.GoalService
	Accounts ports.AccountRegistry
	Rates    RateReader
	// Ready reports whether the backing store is reachable.
	Ready  func(ctx context.Context) error
	Logger *applog.Logger
	// WriteLimit is the number of writes per client per minute.
	WriteLimit int
}

// Server wraps http.Server with the fintrack routes.
type Server struct {
	http.Server
	deps         Deps
	logger       *applog.Logger
	structured   *applog.StructuredLogger
	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	dashboards   *cache.LRUCache[services.Dashboard]
	caches       *cache.Manager
	shutdownOnce sync.Once
}

// NewServer builds the server and starts its background cleanup.
func NewServer(addr string, deps Deps) *Server {
	s := newServer(addr, deps)
	go s.rateLimiter.startCleanup(cleanupInterval)
	s.caches.StartCleanup(cleanupInterval)
	return s
}

func newServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		deps:        deps,
		logger:      logger,
		structured:  applog.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(deps.WriteLimit, time.Minute),
		metrics:     &securityMetrics{},
		dashboards:  cache.NewLRUCache[services.Dashboard](dashboardCacheSize, dashboardCacheTTL),
		caches:      cache.NewManager(),
	}
	s.caches.Register(s.dashboards)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/transactions/{id}/installments", s.handleInstallments)
	mux.HandleFunc("GET /api/installments/upcoming", s.handleUpcoming)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("POST /api/suggestions", s.handleSuggest)

	mux.HandleFunc("GET /api/reports/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports/trends", s.handleTrends)
	mux.HandleFunc("GET /api/reports/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/reports/anomalies", s.handleAnomalies)
	mux.HandleFunc("GET /api/reports/savings", s.handleSavings)
	mux.HandleFunc("GET /api/reports/summary", s.handleSummary)
	mux.HandleFunc("GET /api/reports/monthly", s.handleMonthly)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("PUT /api/goals/{id}/progress", s.handleGoalProgress)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("GET /api/rates/latest", s.handleLatestRate)
	mux.HandleFunc("GET /api/rates/history", s.handleRateHistory)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// withMiddleware attaches the request logger, applies security headers and
// rate limits writes.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r, s.metrics)
		setSecurityHeaders(w.Header())
		w.Header().Set("X-Request-ID", requestIDOf(r))

		if reason := detectSuspiciousRequest(r, s.metrics); reason != "" {
			applog.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP, "reason", reason,
				applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if isWrite(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			applog.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			writeJSON(rw, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", RequestID: requestIDOf(r)})
		} else {
			next.ServeHTTP(rw, r)
		}

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})

	withID := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), requestIDKey{}, incomingRequestID(r))
		applog.RequestIDMiddleware(requestIDOf)(inner).ServeHTTP(w, r.WithContext(ctx))
	})
	return applog.Middleware(s.logger)(withID)
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"security": s.metrics.snapshot(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// invalidateReports drops cached dashboards after a ledger write.
func (s *Server) invalidateReports() {
	s.dashboards.Clear()
}

// ListenAndServe serves until Shutdown. http.ErrServerClosed is not an
// error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the background cleanup and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
