package http

import (
	"fmt"
	"net/http"
	"strconv"

	applog "fintrack/internal/log"
)

const maxForecastMonths = 24

// handleDashboard serves every report at once. Results are cached per
// savings target until the next write.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	target, ok, err := queryFloat(r, "target")
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	var targetPtr *float64
	key := "none"
	if ok {
		if target < 0 {
			writeError(w, r, applog.OpReport, fmt.Errorf("%w: target must not be negative", errBadRequest))
			return
		}
		targetPtr = &target
		key = strconv.FormatFloat(target, 'f', -1, 64)
	}
	if cached, hit := s.dashboards.Get(key); hit {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, cached)
		return
	}
	d, err := s.deps.Reports.Dashboard(r.Context(), targetPtr)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	s.dashboards.Set(key, d)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Reports.Trends(r.Context())
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	months, err := queryInt(r, "months", 0)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	if months < 0 || months > maxForecastMonths {
		writeError(w, r, applog.OpReport, fmt.Errorf("%w: months must be between 0 and %d", errBadRequest, maxForecastMonths))
		return
	}
	rep, err := s.deps.Reports.Forecast(r.Context(), months)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	threshold, _, err := queryFloat(r, "threshold")
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	if threshold < 0 {
		writeError(w, r, applog.OpReport, fmt.Errorf("%w: threshold must not be negative", errBadRequest))
		return
	}
	rep, err := s.deps.Reports.Anomalies(r.Context(), threshold)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	target, ok, err := queryFloat(r, "target")
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	if !ok || target < 0 {
		writeError(w, r, applog.OpReport, fmt.Errorf("%w: target is required and must not be negative", errBadRequest))
		return
	}
	rep, err := s.deps.Reports.Savings(r.Context(), target)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Reports.Summary(r.Context())
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	if year != 0 && (year < 1900 || year > 9999) {
		writeError(w, r, applog.OpReport, fmt.Errorf("%w: year %d out of range", errBadRequest, year))
		return
	}
	rep, err := s.deps.Reports.Year(r.Context(), year)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
