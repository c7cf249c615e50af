package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantonic/setforge/internal/config"
	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/monitor"
	"github.com/quantonic/setforge/internal/notify"
	"github.com/quantonic/setforge/internal/providers/bybit"
)

func newMonitorCmd() *cobra.Command {
	var (
		weightsPath string
		stream      bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch the universe continuously and alert on new setups",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			timeframes := make([]domain.Timeframe, 0, len(a.cfg.Monitor.Timeframes))
			for _, s := range a.cfg.Monitor.Timeframes {
				tf, err := domain.ParseTimeframe(s)
				if err != nil {
					return err
				}
				timeframes = append(timeframes, tf)
			}

			var weights map[domain.Timeframe]float64
			if weightsPath != "" {
				weights, err = config.LoadTimeframeWeights(weightsPath)
				if err != nil {
					return err
				}
			}

			var notifier notify.Notifier = notify.NewConsole(a.log)
			if tg := a.cfg.Notify.Telegram; tg.Token != "" && tg.ChatID != "" {
				notifier = notify.NewFanout(
					notify.NewConsole(a.log),
					notify.NewTelegram(tg.Token, tg.ChatID, ""),
				)
				a.log.Info().Msg("telegram notifications enabled")
			}

			var throttle monitor.Throttle
			if addr := a.cfg.Monitor.ThrottleRedis; addr != "" {
				throttle = monitor.NewRedisThrottle(addr, a.cfg.Monitor.ThrottleRedisDB, monitor.ThrottleConfig{
					DedupTTL:         a.cfg.Monitor.DedupTTL(),
					Cooldown:         a.cfg.Monitor.Cooldown(),
					MaxAlertsPerHour: a.cfg.Monitor.MaxAlertsPerHour,
				})
			}

			var journal monitor.Journal
			if a.journal != nil {
				journal = a.journal
			}

			m := monitor.New(a.screener, throttle, notifier, journal, monitor.Options{
				Symbols:        a.cfg.Symbols,
				Timeframes:     timeframes,
				LookbackBars:   a.cfg.LookbackBars,
				AlertThreshold: a.cfg.Monitor.AlertThreshold,
				Poll:           a.cfg.Monitor.Poll(),
				Weights:        weights,
			}, a.metrics, a.log)

			if stream && len(timeframes) > 0 {
				events := make(chan bybit.ClosedCandle, 64)
				ws := bybit.NewStream(a.cfg.Provider.WSURL, a.metrics, a.log)
				go func() {
					if err := ws.Run(ctx, a.cfg.Symbols, timeframes[0], events); err != nil && ctx.Err() == nil {
						a.log.Error().Err(err).Msg("kline stream stopped")
					}
				}()
				go func() {
					for ev := range events {
						a.log.Debug().Str("symbol", ev.Symbol).Str("timeframe", string(ev.TF)).Msg("candle closed")
						m.TickTimeframe(ctx, ev.TF)
					}
				}()
			}

			err = m.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&weightsPath, "weights", "", "Path to a timeframe weight override file")
	cmd.Flags().BoolVar(&stream, "stream", false, "React to websocket candle closes in addition to polling")
	return cmd
}
