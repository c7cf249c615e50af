package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantonic/setforge/internal/domain"
)

func newScanCmd() *cobra.Command {
	var (
		symbols  string
		interval string
		bars     int
		top      int
		derivs   bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the symbol universe once and print ranked setups",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			universe := a.cfg.Symbols
			if symbols != "" {
				universe = strings.Split(symbols, ",")
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
			if top == 0 {
				top = a.cfg.Screener.Top
			}

			hits, err := a.screener.ScanTop(ctx, universe, tf, bars, top)
			if err != nil {
				return err
			}

			var market []domain.MarketSnapshot
			if derivs {
				for _, h := range hits {
					snap, err := a.client.Market(ctx, h.Symbol)
					if err != nil {
						a.log.Warn().Err(err).Str("symbol", h.Symbol).Msg("derivatives context incomplete")
					}
					market = append(market, snap)
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if derivs {
					return enc.Encode(scanReport{Setups: hits, Market: market})
				}
				return enc.Encode(hits)
			}
			printSetups(hits, market)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbols, "symbols", "", "Comma-separated symbol override")
	cmd.Flags().StringVar(&interval, "interval", "", "Timeframe override (1m|5m|15m|1h|4h|1d)")
	cmd.Flags().IntVar(&bars, "bars", 0, "History depth in bars")
	cmd.Flags().IntVar(&top, "top", 0, "Keep only the N highest-confidence setups")
	cmd.Flags().BoolVar(&derivs, "derivs", false, "Fetch open interest, funding and long/short ratio per hit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of the table")
	return cmd
}

type scanReport struct {
	Setups []domain.Setup          `json:"setups"`
	Market []domain.MarketSnapshot `json:"market"`
}

func printSetups(hits []domain.Setup, market []domain.MarketSnapshot) {
	if len(hits) == 0 {
		fmt.Println("no setups")
		return
	}
	for i, h := range hits {
		dir := "LONG "
		if h.Direction == domain.SideShort {
			dir = "SHORT"
		}
		fmt.Printf("%s %-12s %-4s conf %5.1f  entry %.6g  stop %.6g  target %.6g\n",
			dir, h.Symbol, h.Interval, h.Confidence, h.Entry, h.StopLoss, h.TakeProfit)
		if i < len(market) {
			m := market[i]
			fmt.Printf("      OI %.6g  funding %+.4f%%  long/short %.2f\n",
				m.OpenInterest, m.FundingRate*100, m.LongShortRatio)
		}
	}
}
