package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
)

func ratesCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Show or refresh exchange rates",
	}
	cmd.AddCommand(ratesCurrentCmd(st), ratesRefreshCmd(st), ratesHistoryCmd(st))
	return cmd
}

func ratesCurrentCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Current official, card and blue rates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			q, err := app.Rates.Current(cmd.Context())
			if err != nil {
				return err
			}
			return printRates(cmd, []core.RateQuote{q})
		},
	}
}

func ratesRefreshCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch and store a fresh quote",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			q, err := app.Rates.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return printRates(cmd, []core.RateQuote{q})
		},
	}
}

func ratesHistoryCmd(st *rootState) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Stored quotes of the last days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			quotes, err := app.Rates.History(cmd.Context(), days)
			if err != nil {
				return err
			}
			return printRates(cmd, quotes)
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of days to include")
	return cmd
}

func printRates(cmd *cobra.Command, quotes []core.RateQuote) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tOFFICIAL\tCARD\tBLUE\tSOURCE")
	for _, q := range quotes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			q.Date, q.Official.StringFixed(2), q.Card.StringFixed(2), q.Blue.StringFixed(2), q.Source)
	}
	return w.Flush()
}
