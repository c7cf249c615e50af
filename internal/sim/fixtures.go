// Package sim builds deterministic synthetic candle series for tests
// and offline dry runs. The shapes are engineered so the detector's
// behavior on them is known exactly: VBottomLong carries exactly one
// long setup, VBottomShort its price-mirrored short, and Trending
// carries none at all.
package sim

import (
	"math"
	"time"

	"github.com/quantonic/setforge/internal/domain"
)

// SignalIndex is the bar at which the V-bottom fixtures fire their one
// setup: the nine-period EMA crosses the 21-period EMA during the slow
// drift out of the bottom while RSI is still depressed from the crash.
const SignalIndex = 250

var fixtureStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// vbottomCloses is 136 bars of tight oscillation around 1000, a 32-bar
// crash of 16 points per bar, then a slow 0.01-per-bar recovery drift
// until bar 252 and a 2-point-per-bar rally to the end. The drift lets
// the fast EMA overtake the slow one at bar 250 with tiny per-bar
// gains, so Wilder RSI is still far below the oversold gate there.
func vbottomCloses(n int) []float64 {
	closes := make([]float64, 0, n)
	for i := 0; i < 136; i++ {
		if i%2 == 0 {
			closes = append(closes, 999.75)
		} else {
			closes = append(closes, 1000.25)
		}
	}
	c := closes[len(closes)-1]
	for i := 0; i < 32; i++ {
		c -= 16.0
		closes = append(closes, c)
	}
	for len(closes) < 253 {
		c += 0.01
		closes = append(closes, c)
	}
	for len(closes) < n {
		c += 2.0
		closes = append(closes, c)
	}
	return closes
}

// candlesFrom wraps closes into candles: each bar opens at the prior
// close with half a point of wick on both sides. Volume is flat except
// for a spike on the signal bar so the volume confluence factor and
// the volume filter have something to react to.
func candlesFrom(closes []float64, tf domain.Timeframe) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, cl := range closes {
		op := cl
		if i > 0 {
			op = closes[i-1]
		}
		hi, lo := op, cl
		if cl > op {
			hi = cl
			lo = op
		}
		vol := 1000.0
		if i == SignalIndex {
			vol = 1500.0
		}
		out[i] = domain.Candle{
			Timestamp: fixtureStart.Add(time.Duration(i) * tf.Duration()),
			Open:      op,
			High:      hi + 0.5,
			Low:       lo - 0.5,
			Close:     cl,
			Volume:    vol,
		}
	}
	return out
}

// VBottomLong returns a 500-bar series with exactly one qualifying
// long setup, at SignalIndex.
func VBottomLong(symbol string, tf domain.Timeframe) *domain.Series {
	return mustSeries(symbol, tf, candlesFrom(vbottomCloses(500), tf))
}

// VBottomShort mirrors VBottomLong around 1500, turning the one long
// setup into exactly one short setup at SignalIndex.
func VBottomShort(symbol string, tf domain.Timeframe) *domain.Series {
	closes := vbottomCloses(500)
	for i := range closes {
		closes[i] = 1500.0 - closes[i]
	}
	return mustSeries(symbol, tf, candlesFrom(closes, tf))
}

// GapSignalIndex is the bar at which GapReentryLong fires its setup.
// The steeper 0.039-per-bar recovery drift pulls the EMA cross forward
// to bar 236 even though the bar itself dips.
const GapSignalIndex = 236

// GapReentryLong is the V-bottom recovery with a small bullish fair
// value gap left three bars before the signal: bar 233 carries no upper
// wick and bar 235 no lower wick, so the zone between their closes is
// never traded until the signal bar dips back inside it. The dip is
// sized so the nine-period EMA still completes its cross on that bar
// with RSI depressed from the crash.
func GapReentryLong(symbol string, tf domain.Timeframe) *domain.Series {
	const (
		slope = 0.039
		dip   = 0.0585
	)
	closes := make([]float64, 0, GapSignalIndex+1)
	for i := 0; i < 136; i++ {
		if i%2 == 0 {
			closes = append(closes, 999.75)
		} else {
			closes = append(closes, 1000.25)
		}
	}
	c := closes[len(closes)-1]
	for i := 0; i < 32; i++ {
		c -= 16.0
		closes = append(closes, c)
	}
	for len(closes) < GapSignalIndex {
		c += slope
		closes = append(closes, c)
	}
	closes = append(closes, c-dip)

	candles := candlesFrom(closes, tf)
	gapBar := &candles[GapSignalIndex-3]
	gapBar.High = math.Max(gapBar.Open, gapBar.Close)
	entryBar := &candles[GapSignalIndex-1]
	entryBar.Low = math.Min(entryBar.Open, entryBar.Close)
	return mustSeries(symbol, tf, candles)
}

// Trending returns n bars drifting steadily by step from start. The
// fast EMA never re-crosses the slow one, so no setup ever fires.
func Trending(symbol string, tf domain.Timeframe, n int, start, step float64) *domain.Series {
	closes := make([]float64, n)
	c := start
	for i := range closes {
		closes[i] = c
		c += step
	}
	return mustSeries(symbol, tf, candlesFrom(closes, tf))
}

func mustSeries(symbol string, tf domain.Timeframe, candles []domain.Candle) *domain.Series {
	s, err := domain.NewSeries(symbol, tf, candles)
	if err != nil {
		panic(err)
	}
	return s
}
