package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	gsheet "fintrack/internal/sheets/google"
)

func importSheetCmd(st *rootState) *cobra.Command {
	var (
		spreadsheetID string
		sheetName     string
		dryRun        bool
	)
	cmd := &cobra.Command{
		Use:   "import-sheet",
		Short: "Copy the ledger of a Google spreadsheet into the configured backend",
		Long: `Reads every row of the spreadsheet's ledger tab and stores it in the
configured backend. Use it to move a spreadsheet ledger into SQLite.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if spreadsheetID == "" {
				spreadsheetID = st.cfg.GoogleSpreadsheetID
			}
			if sheetName == "" {
				sheetName = st.cfg.GoogleSheetName
			}
			if backend.BackendType(st.cfg.DataBackend) == backend.SheetsBackend {
				return errors.New("the sheets backend already reads the spreadsheet; choose --backend sqlite")
			}

			client, err := gsheet.New(ctx, gsheet.Options{
				SpreadsheetID:   spreadsheetID,
				SheetName:       sheetName,
				CredentialsJSON: st.cfg.GoogleServiceAccountJSON,
				CredentialsFile: st.cfg.GoogleServiceAccountFile,
			})
			if err != nil {
				return err
			}
			ledger, err := client.Ledger(ctx)
			if err != nil {
				return fmt.Errorf("read spreadsheet: %w", err)
			}
			if dryRun {
				return printJSON(cmd.OutOrStdout(), map[string]any{"rows": len(ledger), "imported": 0})
			}

			app, err := st.app(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			n, err := app.Ledger.Import(ctx, ledger)
			if err != nil {
				return fmt.Errorf("imported %d of %d rows: %w", n, len(ledger), err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"rows": len(ledger), "imported": n})
		},
	}
	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "spreadsheet id; overrides GOOGLE_SPREADSHEET_ID")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "ledger tab name; overrides GOOGLE_SHEET_NAME")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "read and validate the spreadsheet without storing anything")
	return cmd
}
