package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantonic/setforge/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, latest setups and metrics over HTTP while scanning",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			store := &httpapi.LatestStore{}
			probes := []httpapi.HealthProbe{
				func(context.Context) (string, string) {
					return "bybit_breaker", a.client.BreakerState()
				},
			}
			if a.journal != nil {
				probes = append(probes, func(ctx context.Context) (string, string) {
					if err := a.journal.Ping(ctx); err != nil {
						return "journal", "unreachable"
					}
					return "journal", "ok"
				})
			}

			srv := httpapi.New(httpapi.Options{
				Addr:         a.cfg.Server.Addr,
				ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
				WriteTimeout: time.Duration(a.cfg.Server.WriteTimeoutSeconds) * time.Second,
			}, store, a.metrics, a.log, probes...)

			go refreshLoop(ctx, a, store)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address override")
	return cmd
}

// refreshLoop keeps the /setups view current on the monitor's poll
// interval.
func refreshLoop(ctx context.Context, a *app, store *httpapi.LatestStore) {
	tf := a.cfg.Timeframe()
	ticker := time.NewTicker(a.cfg.Monitor.Poll())
	defer ticker.Stop()

	for {
		hits, err := a.screener.Scan(ctx, a.cfg.Symbols, tf, a.cfg.LookbackBars)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Error().Err(err).Msg("refresh scan failed")
		} else {
			store.Update(hits)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
