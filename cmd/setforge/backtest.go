package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantonic/setforge/internal/backtest"
	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/journal"
)

func newBacktestCmd() *cobra.Command {
	var (
		symbol   string
		interval string
		bars     int
		risk     float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the detector over history and report performance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if symbol == "" {
				symbol = a.cfg.Symbols[0]
			}
			tfStr := a.cfg.Interval
			if interval != "" {
				tfStr = interval
			}
			tf, err := domain.ParseTimeframe(tfStr)
			if err != nil {
				return err
			}
			if bars == 0 {
				bars = a.cfg.LookbackBars
			}

			series, err := a.client.Klines(ctx, symbol, tf, bars)
			if err != nil {
				return err
			}
			closed, err := series.DropForming()
			if err != nil {
				return err
			}

			if risk > 0 {
				a.cfg.Backtest.RiskPct = risk
			}
			sim := backtest.New(a.detector, a.cfg.Backtest)
			res, err := sim.Run(closed)
			if err != nil {
				return err
			}
			a.metrics.BacktestEquity.WithLabelValues(symbol).Set(res.Summary.FinalEquity)

			if a.journal != nil {
				runID, err := a.journal.InsertBacktestRun(ctx, symbol, tf, closed.Len(), sim.Options(), res)
				if err != nil {
					a.log.Warn().Err(err).Msg("backtest journaling failed")
				} else {
					a.log.Info().Str("run_id", runID).Msg("backtest journaled")
					if perf, err := a.journal.PerformanceBySymbol(ctx, 10); err != nil {
						a.log.Warn().Err(err).Msg("performance query failed")
					} else if !asJSON {
						printPerformance(perf)
					}
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printSummary(symbol, tf, res.Summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Symbol to replay (default: first configured)")
	cmd.Flags().StringVar(&interval, "interval", "", "Timeframe override")
	cmd.Flags().IntVar(&bars, "bars", 0, "History depth in bars")
	cmd.Flags().Float64Var(&risk, "risk", 0, "Risk per trade as percent of equity")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the full result as JSON")
	return cmd
}

func printSummary(symbol string, tf domain.Timeframe, s backtest.Summary) {
	fmt.Printf("Backtest %s [%s]\n", symbol, tf)
	fmt.Printf("  Trades:        %d (%d W / %d L)\n", s.Trades, s.Wins, s.Losses)
	fmt.Printf("  Win rate:      %.1f%%\n", s.WinRate*100)
	fmt.Printf("  Profit factor: %.2f\n", s.ProfitFactor)
	fmt.Printf("  Return:        %.2f%%  (%.2f -> %.2f)\n", s.TotalReturn*100, s.InitialEquity, s.FinalEquity)
	fmt.Printf("  Max drawdown:  %.2f%%\n", s.MaxDrawdown*100)
	fmt.Printf("  Avg bars held: %.1f\n", s.AvgBarsHeld)
}

func printPerformance(perf []journal.SymbolPerformance) {
	if len(perf) == 0 {
		return
	}
	fmt.Println("Journaled performance by symbol:")
	for _, p := range perf {
		fmt.Printf("  %-12s %3d trades  %5.1f%% win  PnL %+.2f  avg R %+.2f\n",
			p.Symbol, p.Trades, p.WinRate*100, p.TotalPnL, p.AvgR)
	}
}
