package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "setforge"
	version = "v1.0.0"
)

var (
	flagConfig  string
	flagFilters string
	flagLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Signal and setup engine for crypto perpetuals",
		Version: version,
		Long: `setforge detects EMA-cross + RSI setups with structural confluence
scoring across Bybit perpetuals, backtests them bar by bar, and runs a
multi-timeframe alert monitor.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to setforge.yaml (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&flagFilters, "filters", "", "Path to a strategy filter profile file")
	rootCmd.PersistentFlags().StringVar(&flagLevel, "log-level", "", "Log level override (trace|debug|info|warn|error)")

	rootCmd.AddCommand(newScanCmd(), newBacktestCmd(), newMonitorCmd(), newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger. Interactive terminals get the
// console writer; everything else gets JSON lines.
func newLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out = zerolog.New(os.Stderr)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return out.Level(lvl).With().Timestamp().Logger()
}
