package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Data integrity errors surfaced at ingestion. The engine never repairs
// or reorders input; callers decide whether to refetch.
var (
	ErrEmptySeries  = errors.New("empty candle series")
	ErrNonMonotonic = errors.New("non-monotonic candle timestamps")
	ErrBadCandle    = errors.New("malformed candle")
)

// Candle is one OHLCV bar. Immutable once ingested.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Valid reports whether the candle holds a coherent OHLCV tuple.
func (c Candle) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return false
	}
	if c.Volume < 0 {
		return false
	}
	if c.High < c.Low || c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
		return false
	}
	return true
}

// Series is an ordered, validated candle sequence for one symbol/interval.
// Derived indicator arrays are aligned 1:1 with Candles; warm-up gaps are
// math.NaN, never zero.
type Series struct {
	Symbol   string
	Interval Timeframe
	Candles  []Candle
}

// NewSeries validates ordering and candle integrity. Timestamps must be
// strictly ascending; duplicates and reversals are rejected, not repaired.
func NewSeries(symbol string, interval Timeframe, candles []Candle) (*Series, error) {
	if len(candles) == 0 {
		return nil, ErrEmptySeries
	}
	for i, c := range candles {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: index %d at %s", ErrBadCandle, i, c.Timestamp.UTC().Format(time.RFC3339))
		}
		if i > 0 && !candles[i-1].Timestamp.Before(c.Timestamp) {
			return nil, fmt.Errorf("%w: index %d (%s after %s)", ErrNonMonotonic, i,
				candles[i-1].Timestamp.UTC().Format(time.RFC3339), c.Timestamp.UTC().Format(time.RFC3339))
		}
	}
	return &Series{Symbol: symbol, Interval: interval, Candles: candles}, nil
}

// Len returns the number of candles.
func (s *Series) Len() int { return len(s.Candles) }

// Last returns the final candle. Panics on empty series; NewSeries
// guarantees non-empty.
func (s *Series) Last() Candle { return s.Candles[len(s.Candles)-1] }

// DropForming returns a copy of the series without its final candle,
// used when the last bar is still open on the exchange. Returns an error
// when only one candle remains.
func (s *Series) DropForming() (*Series, error) {
	if len(s.Candles) < 2 {
		return nil, fmt.Errorf("%w: cannot drop forming candle", ErrEmptySeries)
	}
	return &Series{Symbol: s.Symbol, Interval: s.Interval, Candles: s.Candles[:len(s.Candles)-1]}, nil
}

// Opens, Highs, Lows, Closes, Volumes project the series into parallel
// arrays for indicator computation.
func (s *Series) Opens() []float64   { return s.project(func(c Candle) float64 { return c.Open }) }
func (s *Series) Highs() []float64   { return s.project(func(c Candle) float64 { return c.High }) }
func (s *Series) Lows() []float64    { return s.project(func(c Candle) float64 { return c.Low }) }
func (s *Series) Closes() []float64  { return s.project(func(c Candle) float64 { return c.Close }) }
func (s *Series) Volumes() []float64 { return s.project(func(c Candle) float64 { return c.Volume }) }

func (s *Series) project(f func(Candle) float64) []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = f(c)
	}
	return out
}

// Defined reports whether a derived value is usable (not a warm-up gap).
func Defined(v float64) bool { return !math.IsNaN(v) }
