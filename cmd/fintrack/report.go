package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func reportCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print analytics reports as JSON",
	}
	cmd.AddCommand(
		trendsCmd(st),
		forecastCmd(st),
		anomaliesCmd(st),
		savingsCmd(st),
		upcomingCmd(st),
		summaryCmd(st),
		monthlyCmd(st),
		dashboardCmd(st),
	)
	return cmd
}

func trendsCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "trends",
		Short: "Monthly spending trend per category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			rep, err := app.Reports.Trends(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func forecastCmd(st *rootState) *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project spending per category for the coming months",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if months < 0 {
				return errors.New("--months must not be negative")
			}
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			rep, err := app.Reports.Forecast(cmd.Context(), months)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().IntVar(&months, "months", 0, "months to project (0 uses FORECAST_MONTHS)")
	return cmd
}

func anomaliesCmd(st *rootState) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Categories spending well above their average this month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			rep, err := app.Reports.Anomalies(cmd.Context(), threshold)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "factor over the average that counts as unusual (0 uses ANOMALY_THRESHOLD)")
	return cmd
}

func savingsCmd(st *rootState) *cobra.Command {
	var target float64
	cmd := &cobra.Command{
		Use:   "savings",
		Short: "Check whether a monthly savings target is feasible",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target < 0 {
				return errors.New("--target must not be negative")
			}
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			rep, err := app.Reports.Savings(cmd.Context(), target)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().Float64Var(&target, "target", 0, "monthly savings target in local currency")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func upcomingCmd(st *rootState) *cobra.Command {
	var (
		months int
		table  bool
	)
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "Credit card installments due in the coming months",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			payments, err := app.Reports.Upcoming(cmd.Context(), months)
			if err != nil {
				return err
			}
			if !table {
				return printJSON(cmd.OutOrStdout(), payments)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DUE\tINSTALLMENT\tCATEGORY\tDESCRIPTION\tAMOUNT")
			for _, p := range payments {
				fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\t%s\n",
					p.DueDate, p.Number, p.Total, p.Category, p.Description, p.AmountLocal.StringFixed(2))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&months, "months", 0, "months ahead to include (0 uses the default of 3)")
	cmd.Flags().BoolVar(&table, "table", false, "print a table instead of JSON")
	return cmd
}

func summaryCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Ledger totals and outstanding installment debt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			rep, err := app.Reports.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func monthlyCmd(st *rootState) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Monthly balance and breakdowns for one year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			rep, err := app.Reports.Year(cmd.Context(), year)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (0 is the current year)")
	return cmd
}

func dashboardCmd(st *rootState) *cobra.Command {
	var target float64
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Every report at once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var targetPtr *float64
			if cmd.Flags().Changed("target") {
				targetPtr = &target
			}
			app, err := st.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			d, err := app.Reports.Dashboard(cmd.Context(), targetPtr)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().Float64Var(&target, "target", 0, "include a savings projection for this monthly target")
	return cmd
}
