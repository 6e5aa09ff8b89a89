package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// filterFromQuery reads the optional list filters. Unknown enum values are
// rejected rather than silently matching nothing.
func filterFromQuery(r *http.Request) (core.Filter, error) {
	q := r.URL.Query()
	var f core.Filter
	var err error
	if f.From, err = queryDate(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, err
	}
	if v := q.Get("type"); v != "" {
		f.Type = core.TransactionType(v)
		if !f.Type.Valid() {
			return f, fmt.Errorf("%w: %q", core.ErrInvalidType, v)
		}
	}
	if v := q.Get("payment_method"); v != "" {
		f.PaymentMethod = core.PaymentMethod(v)
		if !f.PaymentMethod.Valid() {
			return f, fmt.Errorf("%w: %q", core.ErrInvalidPayment, v)
		}
	}
	if v := q.Get("currency"); v != "" {
		f.Currency = core.Currency(v)
		if !f.Currency.Valid() {
			return f, fmt.Errorf("%w: %q", core.ErrInvalidCurrency, v)
		}
	}
	if v := q.Get("fixed"); v != "" {
		fixed, perr := strconv.ParseBool(v)
		if perr != nil {
			return f, fmt.Errorf("%w: fixed must be true or false", errBadRequest)
		}
		f.Fixed = &fixed
	}
	f.Category = sanitizeInput(q.Get("category"))
	f.Subcategory = sanitizeInput(q.Get("subcategory"))
	return f, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	ledger, err := s.deps.Ledger.List(r.Context(), f)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(ledger.SortedByDate()))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	t, err := req.toTransaction()
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	saved, err := s.deps.Ledger.Create(r.Context(), t)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.invalidateReports()
	s.logWritten(r, applog.OpCreate, saved)
	w.Header().Set("Location", fmt.Sprintf("/api/transactions/%d", saved.ID))
	writeJSON(w, http.StatusCreated, toTransactionResponse(saved))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	t, err := s.deps.Ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	t, err := req.toTransaction()
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	t.ID = id
	saved, err := s.deps.Ledger.Update(r.Context(), t)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.invalidateReports()
	s.logWritten(r, applog.OpUpdate, saved)
	writeJSON(w, http.StatusOK, toTransactionResponse(saved))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.deps.Ledger.Delete(r.Context(), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

// handleInstallments returns the payment schedule. ?rate= values foreign
// installments at that rate; ?rate=current uses today's card rate.
func (s *Server) handleInstallments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	rate := decimal.Zero
	switch v := strings.TrimSpace(r.URL.Query().Get("rate")); v {
	case "":
	case "current":
		if s.deps.Rates == nil {
			writeError(w, r, applog.OpRead, fmt.Errorf("%w: rates are not configured", errBadRequest))
			return
		}
		q, err := s.deps.Rates.Current(r.Context())
		if err != nil {
			writeError(w, r, applog.OpRead, err)
			return
		}
		rate = q.Card
	default:
		if rate, err = core.ParseAmount(v); err != nil {
			writeError(w, r, applog.OpRead, fmt.Errorf("rate %q: %w", v, core.ErrInvalidRate))
			return
		}
	}
	lines, err := s.deps.Ledger.Installments(r.Context(), id, rate)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	months, err := queryInt(r, "months", 0)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	if months < 0 || months > 60 {
		writeError(w, r, applog.OpReport, fmt.Errorf("%w: months must be between 0 and 60", errBadRequest))
		return
	}
	upcoming, err := s.deps.Reports.Upcoming(r.Context(), months)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, upcoming)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	tt := core.TransactionType(r.URL.Query().Get("type"))
	if tt == "" {
		tt = core.Expense
	}
	if !tt.Valid() {
		writeError(w, r, applog.OpList, fmt.Errorf("%w: %q", core.ErrInvalidType, tt))
		return
	}
	cats, err := s.deps.Ledger.Categories(r.Context(), tt)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Type: string(tt), Categories: cats})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpSuggest, err)
		return
	}
	desc := sanitizeInput(req.Description)
	if desc == "" {
		writeError(w, r, applog.OpSuggest, fmt.Errorf("%w: description is required", errBadRequest))
		return
	}
	sg, ok, err := s.deps.Ledger.Suggest(r.Context(), desc)
	if err != nil {
		writeError(w, r, applog.OpSuggest, err)
		return
	}
	resp := map[string]any{"suggested": ok}
	if ok {
		resp["suggestion"] = sg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logWritten(r *http.Request, op string, t core.Transaction) {
	s.structured.LogTransactionWritten(r.Context(), op, t.ID, string(t.Type), t.Category,
		t.AmountLocal().StringFixed(2), t.Date.String())
}
