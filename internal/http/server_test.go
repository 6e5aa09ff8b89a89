package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/services"
	"fintrack/internal/sheets/memory"
)

var testNow = time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC)

type fakeRates struct {
	quote core.RateQuote
	err   error
}

func (f fakeRates) Current(context.Context) (core.RateQuote, error) { return f.quote, f.err }
func (f fakeRates) History(context.Context, int) ([]core.RateQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []core.RateQuote{f.quote}, nil
}

type testEnv struct {
	srv   *Server
	store *memory.Store
}

func newTestEnv(t *testing.T, mutate func(*Deps)) testEnv {
	t.Helper()
	store := memory.New([]string{"Food", "Transport"}, []string{"Salary"})
	now := func() time.Time { return testNow }
	deps := Deps{
		Ledger:   services.NewLedgerService(store, nil),
		Reports:  services.NewReportService(store, services.DefaultReportOptions(), now),
		Goals:    services.NewGoalService(store, now),
		Accounts: store,
		Rates: fakeRates{quote: core.RateQuote{
			Date:     core.NewDate(2024, 4, 15),
			Official: decimal.NewFromInt(900),
			Card:     decimal.NewFromInt(1440),
			Blue:     decimal.NewFromInt(1000),
			Source:   "test",
		}},
		Ready:  store.Ping,
		Logger: applog.New(applog.Config{Output: io.Discard}),
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testEnv{srv: srv, store: store}
}

func (e testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func seed(t *testing.T, store *memory.Store) {
	t.Helper()
	one := decimal.NewFromInt(1)
	var l core.Ledger
	for m := 1; m <= 4; m++ {
		food := int64(100)
		if m == 4 {
			food = 300
		}
		l = append(l,
			core.Transaction{Date: core.NewDate(2024, m, 5), Type: core.Expense, Category: "Food",
				Description: "supermarket groceries", Amount: decimal.NewFromInt(food), Currency: core.Local,
				ExchangeRate: one, InstallmentsTotal: 1},
			core.Transaction{Date: core.NewDate(2024, m, 1), Type: core.Income, Category: "Salary",
				Amount: decimal.NewFromInt(1000), Currency: core.Local, ExchangeRate: one, InstallmentsTotal: 1},
		)
	}
	if _, err := store.Import(context.Background(), l); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	failing := newTestEnv(t, func(d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("db down") }
	})
	if rr := failing.do(t, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store status=%d", rr.Code)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Fatalf("missing header %s", h)
		}
	}

	rr = env.do(t, http.MethodGet, "/healthz", "")
	if got := rr.Header().Get("X-Request-ID"); !strings.HasPrefix(got, "req_") {
		t.Fatalf("generated request id = %q", got)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2024-04-10","type":"expense","category":"Food","description":"lunch","amount":"12,50","payment_method":"cash"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeBody[transactionResponse](t, rr)
	if created.ID == 0 || !created.AmountLocal.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected created transaction: %+v", created)
	}
	if created.Currency != "local" || created.InstallmentsTotal != 1 {
		t.Fatalf("defaults not applied: %+v", created)
	}
	if loc := rr.Header().Get("Location"); loc == "" {
		t.Fatal("missing Location header")
	}

	path := "/api/transactions/" + jsonID(created.ID)
	if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPut, path,
		`{"date":"2024-04-11","type":"expense","category":"Food","description":"dinner","amount":20,"currency":"foreign","exchange_rate":"900"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decodeBody[transactionResponse](t, rr)
	if !updated.AmountLocal.Equal(decimal.NewFromInt(18000)) || updated.Description != "dinner" {
		t.Fatalf("unexpected updated transaction: %+v", updated)
	}

	rr = env.do(t, http.MethodGet, "/api/transactions?type=expense&currency=foreign", "")
	if list := decodeBody[[]transactionResponse](t, rr); len(list) != 1 {
		t.Fatalf("filtered list len=%d", len(list))
	}
	rr = env.do(t, http.MethodGet, "/api/transactions?type=income", "")
	if list := decodeBody[[]transactionResponse](t, rr); len(list) != 0 {
		t.Fatalf("income list len=%d", len(list))
	}

	if rr := env.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestTransactionErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid amount", http.MethodPost, "/api/transactions", `{"date":"2024-04-10","type":"expense","category":"Food","amount":"abc"}`, http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPost, "/api/transactions", `{"date":"2024-04-10","type":"expense","category":"Food","amount":-5}`, http.StatusUnprocessableEntity},
		{"missing category", http.MethodPost, "/api/transactions", `{"date":"2024-04-10","type":"expense","amount":"5"}`, http.StatusUnprocessableEntity},
		{"invalid type", http.MethodPost, "/api/transactions", `{"date":"2024-04-10","type":"gift","category":"Food","amount":"5"}`, http.StatusUnprocessableEntity},
		{"local with rate", http.MethodPost, "/api/transactions", `{"date":"2024-04-10","type":"expense","category":"Food","amount":"5","exchange_rate":"2"}`, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/api/transactions", `{"date":"2024-04-10","colour":"red"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/transactions", `{`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/transactions/abc", "", http.StatusBadRequest},
		{"missing id", http.MethodGet, "/api/transactions/99", "", http.StatusNotFound},
		{"update missing", http.MethodPut, "/api/transactions/99", `{"date":"2024-04-10","type":"expense","category":"Food","amount":"5"}`, http.StatusNotFound},
		{"bad filter", http.MethodGet, "/api/transactions?from=yesterday", "", http.StatusUnprocessableEntity},
		{"wrong method", http.MethodPatch, "/api/transactions", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestInstallmentEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2024-04-01","type":"expense","category":"Transport","description":"bike","amount":"300","payment_method":"credit_card","installments_total":3,"installments_paid":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	id := decodeBody[transactionResponse](t, rr).ID

	rr = env.do(t, http.MethodGet, "/api/transactions/"+jsonID(id)+"/installments", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("installments status=%d", rr.Code)
	}
	var lines []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &lines); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 || lines[0]["paid"] != true || lines[1]["paid"] != false {
		t.Fatalf("unexpected schedule: %s", rr.Body.String())
	}

	if rr := env.do(t, http.MethodGet, "/api/transactions/"+jsonID(id)+"/installments?rate=current", ""); rr.Code != http.StatusOK {
		t.Fatalf("installments at current rate status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/transactions/"+jsonID(id)+"/installments?rate=-1", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("installments with bad rate status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/installments/upcoming?months=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("upcoming status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/installments/upcoming?months=-1", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("upcoming negative months status=%d", rr.Code)
	}
}

func TestReportEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	seed(t, env.store)

	rr := env.do(t, http.MethodGet, "/api/reports/anomalies", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("anomalies status=%d", rr.Code)
	}
	var anomalies struct {
		Status    string `json:"status"`
		Anomalies []struct {
			Category string `json:"category"`
		} `json:"anomalies"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &anomalies); err != nil {
		t.Fatal(err)
	}
	if anomalies.Status != "ok" || len(anomalies.Anomalies) != 1 || anomalies.Anomalies[0].Category != "Food" {
		t.Fatalf("unexpected anomalies: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/reports/summary", "")
	var summary struct {
		TotalIncome  string `json:"total_income"`
		Transactions int    `json:"transactions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.TotalIncome != "4000" || summary.Transactions != 8 {
		t.Fatalf("unexpected summary: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/reports/monthly?year=2024", "")
	if year := decodeBody[services.YearReport](t, rr); year.Year != 2024 || len(year.Months) == 0 {
		t.Fatalf("unexpected year report: %s", rr.Body.String())
	}

	for _, path := range []string{"/api/reports/trends", "/api/reports/forecast?months=2", "/api/reports/savings?target=100"} {
		if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	for _, path := range []string{"/api/reports/savings", "/api/reports/savings?target=-1", "/api/reports/forecast?months=99", "/api/reports/anomalies?threshold=x", "/api/reports/monthly?year=12"} {
		if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestReportsRejectNonFiniteQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	seed(t, env.store)

	for _, path := range []string{
		"/api/reports/savings?target=NaN",
		"/api/reports/savings?target=-Inf",
		"/api/reports/anomalies?threshold=Inf",
		"/api/reports/dashboard?target=NaN",
	} {
		rr := env.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		body := decodeBody[errorBody](t, rr)
		if !strings.Contains(body.Error, "finite") {
			t.Fatalf("%s: error %q", path, body.Error)
		}
	}
}

func TestDashboardCacheInvalidatedOnWrite(t *testing.T) {
	env := newTestEnv(t, nil)
	seed(t, env.store)

	if rr := env.do(t, http.MethodGet, "/api/reports/dashboard", ""); rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first dashboard X-Cache=%q", rr.Header().Get("X-Cache"))
	}
	if rr := env.do(t, http.MethodGet, "/api/reports/dashboard", ""); rr.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second dashboard X-Cache=%q", rr.Header().Get("X-Cache"))
	}
	if rr := env.do(t, http.MethodGet, "/api/reports/dashboard?target=50", ""); rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("dashboard with target X-Cache=%q", rr.Header().Get("X-Cache"))
	}

	env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2024-04-12","type":"expense","category":"Food","amount":"10"}`)
	rr := env.do(t, http.MethodGet, "/api/reports/dashboard", "")
	if rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("dashboard after write X-Cache=%q", rr.Header().Get("X-Cache"))
	}
	d := decodeBody[map[string]json.RawMessage](t, rr)
	if _, ok := d["savings"]; ok {
		t.Fatal("savings present without a target")
	}
}

func TestSuggestEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	seed(t, env.store)

	rr := env.do(t, http.MethodPost, "/api/suggestions", `{"description":"Groceries at the supermarket"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("suggest status=%d", rr.Code)
	}
	var got struct {
		Suggested  bool `json:"suggested"`
		Suggestion struct {
			Category string `json:"category"`
			Type     string `json:"type"`
		} `json:"suggestion"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Suggested || got.Suggestion.Category != "Food" || got.Suggestion.Type != "expense" {
		t.Fatalf("unexpected suggestion: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/suggestions", `{"description":"plane tickets"}`)
	if decodeBody[map[string]any](t, rr)["suggested"] != false {
		t.Fatalf("unrelated description suggested: %s", rr.Body.String())
	}
	if rr := env.do(t, http.MethodPost, "/api/suggestions", `{"description":"  "}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("blank description status=%d", rr.Code)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/categories?type=income", "")
	got := decodeBody[categoriesResponse](t, rr)
	if got.Type != "income" || len(got.Categories) != 1 || got.Categories[0] != "Salary" {
		t.Fatalf("unexpected categories: %s", rr.Body.String())
	}
	if rr := env.do(t, http.MethodGet, "/api/categories?type=gift", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid type status=%d", rr.Code)
	}
}

func TestAccountEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/accounts", "")
	if accounts := decodeBody[[]accountResponse](t, rr); len(accounts) != 2 {
		t.Fatalf("default accounts = %d", len(accounts))
	}

	rr = env.do(t, http.MethodPost, "/api/accounts", `{"name":"Savings","type":"savings","balance":"250.5"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account status=%d body=%s", rr.Code, rr.Body.String())
	}
	if a := decodeBody[accountResponse](t, rr); a.Currency != "local" || !a.Balance.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("unexpected account: %+v", a)
	}

	if rr := env.do(t, http.MethodPost, "/api/accounts", `{"name":"Cash","type":"cash"}`); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate account status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/accounts", `{"name":"Odd","type":"piggy"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid account type status=%d", rr.Code)
	}
}

func TestGoalEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/goals", `{"name":"Holiday","type":"travel","target_amount":"1000"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create goal status=%d body=%s", rr.Code, rr.Body.String())
	}
	g := decodeBody[goalResponse](t, rr)
	if g.Status != "in_progress" || g.Progress != 0 {
		t.Fatalf("unexpected goal: %+v", g)
	}
	if g.StartDate.String() != "2024-04-15" || g.TargetDate.String() != "2025-04-15" {
		t.Fatalf("default dates = %s..%s", g.StartDate, g.TargetDate)
	}

	path := "/api/goals/" + jsonID(g.ID)
	rr = env.do(t, http.MethodPut, path+"/progress", `{"current_amount":1200}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("progress status=%d body=%s", rr.Code, rr.Body.String())
	}
	if g := decodeBody[goalResponse](t, rr); g.Status != "completed" || g.Progress != 100 || !g.Remaining.IsZero() {
		t.Fatalf("unexpected completed goal: %+v", g)
	}
	if rr := env.do(t, http.MethodPut, path+"/progress", `{"current_amount":"-1"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative progress status=%d", rr.Code)
	}

	if rr := env.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete goal status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("delete missing goal status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/goals", "")
	if goals := decodeBody[[]goalResponse](t, rr); len(goals) != 0 {
		t.Fatalf("goals after delete = %d", len(goals))
	}
}

func TestRateEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/rates/latest", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("latest status=%d", rr.Code)
	}
	if q := decodeBody[rateResponse](t, rr); !q.Card.Equal(decimal.NewFromInt(1440)) {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if rr := env.do(t, http.MethodGet, "/api/rates/history?days=7", ""); rr.Code != http.StatusOK {
		t.Fatalf("history status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/rates/history?days=0", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("history days=0 status=%d", rr.Code)
	}

	noRate := newTestEnv(t, func(d *Deps) { d.Rates = fakeRates{err: rates.ErrNoRate} })
	if rr := noRate.do(t, http.MethodGet, "/api/rates/latest", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("latest without rate status=%d", rr.Code)
	}

	unconfigured := newTestEnv(t, func(d *Deps) { d.Rates = nil })
	if rr := unconfigured.do(t, http.MethodGet, "/api/rates/latest", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("latest without source status=%d", rr.Code)
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.WriteLimit = 2 })

	body := `{"date":"2024-04-10","type":"expense","category":"Food","amount":"1"}`
	for i := 0; i < 2; i++ {
		if rr := env.do(t, http.MethodPost, "/api/transactions", body); rr.Code != http.StatusCreated {
			t.Fatalf("write %d status=%d", i, rr.Code)
		}
	}
	rr := env.do(t, http.MethodPost, "/api/transactions", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("third write status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/transactions", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, status=%d", rr.Code)
	}

	stats := decodeBody[struct {
		Security SecurityStats `json:"security"`
	}](t, env.do(t, http.MethodGet, "/healthz", ""))
	if stats.Security.RateLimitHits != 1 {
		t.Fatalf("rate limit hits = %d", stats.Security.RateLimitHits)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
