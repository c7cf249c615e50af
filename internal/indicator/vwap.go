package indicator

import "math"

// VWAP returns the cumulative typical-price VWAP anchored at the first
// bar of the supplied window. Callers control the anchor by slicing the
// window they pass in; live and backtest paths share this definition.
func VWAP(high, low, close, volume []float64) []float64 {
	out := make([]float64, len(close))
	var cumPV, cumV float64
	for i := range close {
		tp := (high[i] + low[i] + close[i]) / 3
		cumPV += tp * volume[i]
		cumV += volume[i]
		if cumV == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cumPV / cumV
	}
	return out
}
