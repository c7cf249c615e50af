package indicator

import "math"

// TrueRange per bar: max(high−low, |high−prevClose|, |low−prevClose|).
// The first bar has no previous close and uses high−low.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		hl := high[i] - low[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR with Wilder smoothing: seeded at index p−1 with the simple mean of
// the first p true ranges, then atr[i] = (atr[i-1]*(p-1) + tr[i]) / p.
func ATR(high, low, close []float64, p int) []float64 {
	out := make([]float64, len(close))
	for i := range out {
		out[i] = math.NaN()
	}
	if p <= 0 || len(close) < p {
		return out
	}

	tr := TrueRange(high, low, close)
	var seed float64
	for i := 0; i < p; i++ {
		seed += tr[i]
	}
	out[p-1] = seed / float64(p)
	for i := p; i < len(close); i++ {
		out[i] = (out[i-1]*float64(p-1) + tr[i]) / float64(p)
	}
	return out
}
