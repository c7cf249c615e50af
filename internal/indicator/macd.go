package indicator

import "math"

// MACD returns the MACD line (EMA fast − EMA slow), its signal line
// (EMA of the MACD line) and the histogram (line − signal). The line is
// defined from index slow−1, the signal from index slow−1+signal−1.
func MACD(close []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(close)
	line = make([]float64, n)
	sig = make([]float64, n)
	hist = make([]float64, n)
	for i := range line {
		line[i] = math.NaN()
		sig[i] = math.NaN()
		hist[i] = math.NaN()
	}
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow || n < slow {
		return line, sig, hist
	}

	emaFast := EMA(close, fast)
	emaSlow := EMA(close, slow)
	for i := slow - 1; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}

	sig = emaFrom(line, signal, slow-1)
	for i := range hist {
		if !math.IsNaN(line[i]) && !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return line, sig, hist
}
