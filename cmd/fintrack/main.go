package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

var version = "dev"

// rootState carries what PersistentPreRunE loads to the subcommands.
type rootState struct {
	envFile   string
	logLevel  string
	logFormat string
	backend   string

	cfg    *config.Config
	logger *applog.Logger
}

func newRootCmd() *cobra.Command {
	st := &rootState{}
	cmd := &cobra.Command{
		Use:   "fintrack",
		Short: "Personal finance analytics",
		Long: `fintrack keeps a ledger of income and expenses and reports on it:
spending trends, forecasts, unusual spending, savings feasibility and
upcoming credit card installments.`,
		SilenceUsage:      true,
		PersistentPreRunE: st.load,
	}

	cmd.PersistentFlags().StringVar(&st.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&st.logFormat, "log-format", "", "log format (text, json); overrides LOG_FORMAT")
	cmd.PersistentFlags().StringVar(&st.backend, "backend", "", "data backend (memory, sqlite, sheets); overrides DATA_BACKEND")

	cmd.AddCommand(serveCmd(st))
	cmd.AddCommand(reportCmd(st))
	cmd.AddCommand(suggestCmd(st))
	cmd.AddCommand(importSheetCmd(st))
	cmd.AddCommand(ratesCmd(st))
	cmd.AddCommand(versionCmd())
	return cmd
}

func (st *rootState) load(cmd *cobra.Command, _ []string) error {
	if err := cli.LoadEnvFile(st.envFile); err != nil {
		return err
	}
	if st.logLevel != "" {
		os.Setenv("LOG_LEVEL", st.logLevel)
	}
	if st.logFormat != "" {
		os.Setenv("LOG_FORMAT", st.logFormat)
	}
	if st.backend != "" {
		os.Setenv("DATA_BACKEND", st.backend)
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	// Logs go to stderr so command output on stdout stays machine readable.
	logger, err := cli.SetupLogger(cfg, applog.ComponentCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	st.cfg, st.logger = cfg, logger
	return nil
}

func (st *rootState) app(ctx context.Context) (*cli.App, error) {
	return cli.NewApp(ctx, st.cfg, st.logger, cli.Options{})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// Skip the configuration load.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fintrack", version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
