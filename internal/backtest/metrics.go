package backtest

import "math"

// Summary aggregates closed trades and the realized equity curve.
type Summary struct {
	Trades int `json:"trades"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	// WinRate is wins over total trades, 0..1.
	WinRate float64 `json:"win_rate"`
	// ProfitFactor is gross profit over gross loss. With winners and no
	// losers it is +Inf; with no trades at all it is 0.
	ProfitFactor float64 `json:"profit_factor"`

	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"`

	InitialEquity float64 `json:"initial_equity"`
	FinalEquity   float64 `json:"final_equity"`
	// TotalReturn is (final - initial) / initial.
	TotalReturn float64 `json:"total_return"`
	// MaxDrawdown is the largest peak-to-trough drop of the realized
	// curve, as a fraction of the peak.
	MaxDrawdown float64 `json:"max_drawdown"`

	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`
	AvgBarsHeld float64 `json:"avg_bars_held"`
}

// Summarize computes the run summary. Trades with zero PnL count as
// losses so the win rate never flatters break-even scratches.
func Summarize(trades []ClosedTrade, curve []EquityPoint, initial, final float64) Summary {
	s := Summary{InitialEquity: initial, FinalEquity: final}
	if initial != 0 {
		s.TotalReturn = (final - initial) / initial
	}

	peak := initial
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
	}

	s.Trades = len(trades)
	if s.Trades == 0 {
		return s
	}

	bars := 0
	for _, t := range trades {
		if t.PnL > 0 {
			s.Wins++
			s.GrossProfit += t.PnL
			if t.PnL > s.LargestWin {
				s.LargestWin = t.PnL
			}
		} else {
			s.Losses++
			s.GrossLoss += -t.PnL
			if t.PnL < s.LargestLoss {
				s.LargestLoss = t.PnL
			}
		}
		bars += t.CloseIndex - t.OpenIndex
	}

	s.WinRate = float64(s.Wins) / float64(s.Trades)
	switch {
	case s.GrossLoss > 0:
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	case s.GrossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	}
	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = s.GrossLoss / float64(s.Losses)
	}
	s.AvgBarsHeld = float64(bars) / float64(s.Trades)
	return s
}
