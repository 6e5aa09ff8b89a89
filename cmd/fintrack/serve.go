package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
)

const (
	shutdownTimeout = 30 * time.Second
	cacheSweepEvery = 5 * time.Minute
)

func serveCmd(st *rootState) *cobra.Command {
	var (
		port       string
		writeLimit int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				port = st.cfg.Port
			}
			ctx, stop := cli.GracefulShutdown(cmd.Context(), st.logger)
			defer stop()

			app, err := st.app(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					st.logger.Error("Cleanup failed", "error", err)
				}
			}()
			app.Caches.StartCleanup(cacheSweepEvery)
			defer app.Caches.Stop()

			srv := apphttp.NewServer(":"+port, apphttp.Deps{
				Ledger:     app.Ledger,
				Reports:    app.Reports,
				Goals:      app.Goals,
				Accounts:   app.Store,
				Rates:      app.Rates,
				Ready:      app.Store.Ping,
				Logger:     st.logger,
				WriteLimit: writeLimit,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			st.logger.Info("Starting fintrack server", "port", port, "backend", st.cfg.DataBackend)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			err = cli.RunWithTimeout(shutdownTimeout, srv.Shutdown)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			st.logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port; overrides PORT")
	cmd.Flags().IntVar(&writeLimit, "write-limit", 60, "ledger writes allowed per client per minute")
	return cmd
}
