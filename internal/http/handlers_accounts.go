package http

import (
	"fmt"
	"net/http"

	applog "fintrack/internal/log"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.deps.Accounts.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	a, err := req.toAccount()
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	saved, err := s.deps.Accounts.CreateAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(saved))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.deps.Goals.List(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoalResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	g, err := req.toGoal()
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	view, err := s.deps.Goals.Create(r.Context(), g)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalResponse(view))
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	var req progressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	current, err := parseNonNegative(string(req.CurrentAmount))
	if err != nil {
		writeError(w, r, applog.OpUpdate, fmt.Errorf("current amount %q: %w", req.CurrentAmount, err))
		return
	}
	view, err := s.deps.Goals.UpdateProgress(r.Context(), id, current)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(view))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.deps.Goals.Delete(r.Context(), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLatestRate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rates == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "rates are not configured", RequestID: requestIDOf(r)})
		return
	}
	q, err := s.deps.Rates.Current(r.Context())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toRateResponse(q))
}

func (s *Server) handleRateHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rates == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "rates are not configured", RequestID: requestIDOf(r)})
		return
	}
	days, err := queryInt(r, "days", 30)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if days < 1 || days > 3650 {
		writeError(w, r, applog.OpRead, fmt.Errorf("%w: days must be between 1 and 3650", errBadRequest))
		return
	}
	quotes, err := s.deps.Rates.History(r.Context(), days)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	out := make([]rateResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, toRateResponse(q))
	}
	writeJSON(w, http.StatusOK, out)
}
