package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func suggestCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest DESCRIPTION...",
		Short: "Suggest a category for a transaction description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := strings.Join(args, " ")
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			sg, ok, err := app.Ledger.Suggest(cmd.Context(), desc)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "no confident suggestion for", fmt.Sprintf("%q", desc))
				return printJSON(cmd.OutOrStdout(), map[string]any{"suggested": false})
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"suggested": true, "suggestion": sg})
		},
	}
}
