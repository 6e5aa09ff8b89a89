package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return NewWithService(svc, "sheet-id", "")
}

func TestClientLedger(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"range": "Transactions!A1:L3",
			"majorDimension": "ROWS",
			"values": [
				["date", "type", "category", "amount"],
				["2024-01-05", "expense", "Food", "12.5"],
				["2024-01-06", "expense", "", "3"]
			]
		}`))
	})

	ledger, err := c.Ledger(context.Background())
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Category != "Food" {
		t.Fatalf("unexpected ledger: %+v", ledger)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-id/values/") || !strings.Contains(gotPath, "Transactions") {
		t.Fatalf("unexpected request path %q", gotPath)
	}
}

func TestClientLedgerAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	})
	if _, err := c.Ledger(context.Background()); err == nil {
		t.Fatalf("expected error from API failure")
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for missing spreadsheet id")
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
	_, err = New(context.Background(), Options{SpreadsheetID: "x", CredentialsFile: "/nonexistent/key.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got %v", err)
	}
}

func TestNilServiceFails(t *testing.T) {
	if _, err := (&Client{}).Ledger(context.Background()); err == nil {
		t.Fatalf("expected error for nil service")
	}
}
