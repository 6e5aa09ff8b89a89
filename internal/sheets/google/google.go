package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	ports "fintrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads a ledger kept in a Google spreadsheet tab. It never writes.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.LedgerReader = (*Client)(nil)

// Options configures where the ledger lives and how to authenticate.
type Options struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON or CredentialsFile hold a service account key. When
	// both are empty GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string
}

// New creates a read-only Sheets client.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Transactions"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// newSheetsService authenticates with a service account key.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(opts.CredentialsJSON))
	file := strings.TrimSpace(opts.CredentialsFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline service account credentials", applog.FieldComponent, applog.ComponentSheets)
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", applog.FieldComponent, applog.ComponentSheets, "path", file)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Ledger reads every row of the sheet. Rows that fail to parse or validate
// are logged and skipped; the header row must name the required columns.
func (c *Client) Ledger(ctx context.Context) (core.Ledger, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:L", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read ledger sheet %q: %w", c.sheetName, err)
	}

	ledger, rowErrs, err := parseLedger(resp.Values)
	if err != nil {
		return nil, err
	}
	for _, re := range rowErrs {
		slog.WarnContext(ctx, "Skipping invalid ledger row",
			applog.FieldComponent, applog.ComponentSheets,
			"sheet", c.sheetName,
			"row", re.Row,
			"error", re.Err)
	}
	slog.InfoContext(ctx, "Ledger read from spreadsheet",
		applog.FieldComponent, applog.ComponentSheets,
		"sheet", c.sheetName,
		"rows", len(ledger),
		"skipped", len(rowErrs))
	return ledger, nil
}
