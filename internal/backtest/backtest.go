// Package backtest replays setup detection bar by bar over a historical
// series, managing a single simulated position at a time and aggregating
// closed trades into performance metrics. Equity is realized-only: it
// changes when a trade closes, never mark-to-market, so the curve is a
// step function over trade-closing bars.
package backtest

import (
	"math"
	"time"

	"github.com/quantonic/setforge/internal/domain"
)

// Evaluator yields the setup decision for one bar. *setup.Detector is
// the production implementation; tests may script their own.
type Evaluator interface {
	Evaluate(s *domain.Series, i int) (domain.Setup, error)
}

// Options control position sizing and entry gating for one run.
type Options struct {
	// InitialEquity is the starting account balance.
	InitialEquity float64 `json:"initial_equity" yaml:"initial_equity"`
	// RiskPct is the percentage of current equity risked per trade; the
	// opening quantity is riskAmount / |entry - stop|.
	RiskPct float64 `json:"risk_pct" yaml:"risk_pct"`
	// MinConfidence gates entries; setups scoring below it are skipped.
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	// TrailingStopPct ratchets the stop behind the best price seen since
	// entry when > 0. Zero leaves the stop where the setup placed it.
	TrailingStopPct float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct"`
}

// DefaultOptions sizes trades at 1% risk on 10k and takes every setup
// regardless of confidence.
func DefaultOptions() Options {
	return Options{
		InitialEquity: 10_000,
		RiskPct:       1.0,
	}
}

// ExitReason says what closed a trade.
type ExitReason string

const (
	ExitStop      ExitReason = "stop"
	ExitTarget    ExitReason = "target"
	ExitEndOfData ExitReason = "end-of-data"
)

// Fill is one executed entry tranche (the opening fill or a DCA level).
type Fill struct {
	BarIndex int     `json:"bar_index"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// ClosedTrade is the immutable record of one completed position.
type ClosedTrade struct {
	Symbol     string          `json:"symbol"`
	Direction  domain.Side     `json:"direction"`
	Confidence float64         `json:"confidence"`
	OpenIndex  int             `json:"open_index"`
	CloseIndex int             `json:"close_index"`
	OpenTime   time.Time       `json:"open_time"`
	CloseTime  time.Time       `json:"close_time"`
	Fills      []Fill          `json:"fills"`
	AvgEntry   float64         `json:"avg_entry"`
	ExitPrice  float64         `json:"exit_price"`
	Quantity   float64         `json:"quantity"`
	StopLoss   float64         `json:"stop_loss"`
	TakeProfit float64         `json:"take_profit"`
	Reason     ExitReason      `json:"reason"`
	PnL        float64         `json:"pnl"`
	RMultiple  float64         `json:"r_multiple"`
}

// EquityPoint is one step of the realized equity curve.
type EquityPoint struct {
	BarIndex int     `json:"bar_index"`
	Equity   float64 `json:"equity"`
}

// Result is the full outcome of one replay.
type Result struct {
	Trades  []ClosedTrade `json:"trades"`
	Curve   []EquityPoint `json:"equity_curve"`
	Summary Summary       `json:"summary"`
}

// Simulator drives an Evaluator over a series with one set of options.
type Simulator struct {
	opts Options
	eval Evaluator
}

// New builds a simulator; zero options are replaced by defaults.
func New(eval Evaluator, opts Options) *Simulator {
	if opts.InitialEquity == 0 {
		opts = DefaultOptions()
	}
	return &Simulator{opts: opts, eval: eval}
}

// Options returns the simulator's options.
func (b *Simulator) Options() Options { return b.opts }

// Run replays the whole series. Per bar, an open position is updated
// first (trailing stop, then pending DCA fills, then exits with the
// stop taking priority over the target when one bar touches both);
// while flat the evaluator is consulted, so a bar that closes a trade
// may also open the next one. Any position still open after the last
// bar is force-closed at its close price.
func (b *Simulator) Run(series *domain.Series) (*Result, error) {
	if series == nil || series.Len() == 0 {
		return nil, domain.ErrEmptySeries
	}

	equity := b.opts.InitialEquity
	curve := []EquityPoint{{BarIndex: 0, Equity: equity}}
	var trades []ClosedTrade
	var pos *position

	n := series.Len()
	for i := 0; i < n; i++ {
		bar := series.Candles[i]

		if pos != nil {
			pos.trail(bar, b.opts.TrailingStopPct)
			pos.fillDCA(bar, i)
			if price, reason, hit := pos.exitAt(bar); hit {
				t := pos.close(i, bar.Timestamp, price, reason)
				equity += t.PnL
				trades = append(trades, t)
				curve = append(curve, EquityPoint{BarIndex: i, Equity: equity})
				pos = nil
			}
		}

		if pos == nil {
			st, err := b.eval.Evaluate(series, i)
			if err != nil {
				return nil, err
			}
			if st.Tradable(b.opts.MinConfidence) {
				pos = open(st, equity, b.opts.RiskPct, bar, i)
			}
		}
	}

	if pos != nil {
		last := series.Candles[n-1]
		t := pos.close(n-1, last.Timestamp, last.Close, ExitEndOfData)
		equity += t.PnL
		trades = append(trades, t)
		curve = append(curve, EquityPoint{BarIndex: n - 1, Equity: equity})
	}

	return &Result{
		Trades:  trades,
		Curve:   curve,
		Summary: Summarize(trades, curve, b.opts.InitialEquity, equity),
	}, nil
}

// position is the mutable state of the one open trade.
type position struct {
	symbol     string
	dir        domain.Side
	confidence float64
	openIndex  int
	openTime   time.Time

	fills    []Fill
	quantity float64
	avgEntry float64
	initial  float64
	risk     float64

	stop    float64
	target  float64
	pending []domain.DCALevel

	highWater float64
	lowWater  float64
}

// open sizes and opens a position from a tradable setup. A setup whose
// stop distance is zero or not finite cannot be sized and is skipped.
func open(st domain.Setup, equity, riskPct float64, bar domain.Candle, i int) *position {
	risk := equity * riskPct / 100
	dist := math.Abs(st.Entry - st.StopLoss)
	if !(risk > 0) || !(dist > 0) {
		return nil
	}
	qty := risk / dist
	return &position{
		symbol:     st.Symbol,
		dir:        st.Direction,
		confidence: st.Confidence,
		openIndex:  i,
		openTime:   bar.Timestamp,
		fills:      []Fill{{BarIndex: i, Price: st.Entry, Quantity: qty}},
		quantity:   qty,
		avgEntry:   st.Entry,
		initial:    qty,
		risk:       risk,
		stop:       st.StopLoss,
		target:     st.TakeProfit,
		pending:    append([]domain.DCALevel(nil), st.DCALevels...),
		highWater:  bar.High,
		lowWater:   bar.Low,
	}
}

// trail ratchets the stop behind the best price seen since entry.
func (p *position) trail(bar domain.Candle, pct float64) {
	if pct <= 0 {
		return
	}
	if p.dir == domain.SideLong {
		if bar.High > p.highWater {
			p.highWater = bar.High
		}
		if ns := p.highWater * (1 - pct/100); ns > p.stop {
			p.stop = ns
		}
	} else {
		if bar.Low < p.lowWater {
			p.lowWater = bar.Low
		}
		if ns := p.lowWater * (1 + pct/100); ns < p.stop {
			p.stop = ns
		}
	}
}

// fillDCA executes at most the nearest pending level per bar; each
// level fills once, ever, at its exact price, re-averaging the entry.
func (p *position) fillDCA(bar domain.Candle, i int) {
	if len(p.pending) == 0 {
		return
	}
	lv := p.pending[0]
	touched := (p.dir == domain.SideLong && bar.Low <= lv.Price) ||
		(p.dir == domain.SideShort && bar.High >= lv.Price)
	if !touched {
		return
	}
	add := p.initial * lv.Weight / 100
	total := p.avgEntry*p.quantity + lv.Price*add
	p.quantity += add
	p.avgEntry = total / p.quantity
	p.fills = append(p.fills, Fill{BarIndex: i, Price: lv.Price, Quantity: add})
	p.pending = p.pending[1:]
}

// exitAt reports whether the bar's range touches the stop or target.
// When it spans both, the stop wins as the conservative assumption.
func (p *position) exitAt(bar domain.Candle) (float64, ExitReason, bool) {
	if p.dir == domain.SideLong {
		if bar.Low <= p.stop {
			return p.stop, ExitStop, true
		}
		if bar.High >= p.target {
			return p.target, ExitTarget, true
		}
	} else {
		if bar.High >= p.stop {
			return p.stop, ExitStop, true
		}
		if bar.Low <= p.target {
			return p.target, ExitTarget, true
		}
	}
	return 0, "", false
}

// close converts the position into its trade record at the given price.
func (p *position) close(i int, ts time.Time, price float64, reason ExitReason) ClosedTrade {
	diff := price - p.avgEntry
	if p.dir == domain.SideShort {
		diff = p.avgEntry - price
	}
	pnl := diff * p.quantity
	r := 0.0
	if p.risk > 0 {
		r = pnl / p.risk
	}
	return ClosedTrade{
		Symbol:     p.symbol,
		Direction:  p.dir,
		Confidence: p.confidence,
		OpenIndex:  p.openIndex,
		CloseIndex: i,
		OpenTime:   p.openTime,
		CloseTime:  ts,
		Fills:      p.fills,
		AvgEntry:   p.avgEntry,
		ExitPrice:  price,
		Quantity:   p.quantity,
		StopLoss:   p.stop,
		TakeProfit: p.target,
		Reason:     reason,
		PnL:        pnl,
		RMultiple:  r,
	}
}
