package structure

import "github.com/quantonic/setforge/internal/domain"

// PatternKind names a recognized candlestick pattern.
type PatternKind string

const (
	PatternEngulfingBullish PatternKind = "engulfing_bullish"
	PatternEngulfingBearish PatternKind = "engulfing_bearish"
	PatternHammer           PatternKind = "hammer"
)

// Pattern is a recognized candlestick pattern at one bar index.
type Pattern struct {
	Kind  PatternKind `json:"kind"`
	Index int         `json:"index"`
}

// Bullish reports whether the pattern confirms long setups.
func (p Pattern) Bullish() bool {
	return p.Kind == PatternEngulfingBullish || p.Kind == PatternHammer
}

// Bearish reports whether the pattern confirms short setups.
func (p Pattern) Bearish() bool { return p.Kind == PatternEngulfingBearish }

// IsBullishEngulfing: previous candle bearish, current bullish, and the
// current body fully contains the previous body.
func IsBullishEngulfing(prev, cur domain.Candle) bool {
	return prev.Close < prev.Open &&
		cur.Close > cur.Open &&
		cur.Open <= prev.Close &&
		cur.Close >= prev.Open
}

// IsBearishEngulfing mirrors IsBullishEngulfing.
func IsBearishEngulfing(prev, cur domain.Candle) bool {
	return prev.Close > prev.Open &&
		cur.Close < cur.Open &&
		cur.Open >= prev.Close &&
		cur.Close <= prev.Open
}

// IsHammer: lower wick at least twice the body with a stunted upper
// wick, leaving the body near the top of the range.
func IsHammer(c domain.Candle) bool {
	body := c.Close - c.Open
	if body < 0 {
		body = -body
	}
	lower := minf(c.Open, c.Close) - c.Low
	upper := c.High - maxf(c.Open, c.Close)
	return lower >= 2*body && upper < 0.5*body
}

// PatternsAt evaluates the current and immediately prior bar only; no
// later bar can change the result.
func PatternsAt(candles []domain.Candle, i int) []Pattern {
	if i <= 0 || i >= len(candles) {
		return nil
	}
	var out []Pattern
	prev, cur := candles[i-1], candles[i]
	if IsBullishEngulfing(prev, cur) {
		out = append(out, Pattern{Kind: PatternEngulfingBullish, Index: i})
	}
	if IsBearishEngulfing(prev, cur) {
		out = append(out, Pattern{Kind: PatternEngulfingBearish, Index: i})
	}
	if IsHammer(cur) {
		out = append(out, Pattern{Kind: PatternHammer, Index: i})
	}
	return out
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
