package indicator

import "math"

// Bollinger returns upper/mid/lower bands: mid = SMA(p), bands at
// mid ± k population standard deviations of the window.
func Bollinger(close []float64, p int, k float64) (upper, mid, lower []float64) {
	n := len(close)
	upper = make([]float64, n)
	mid = make([]float64, n)
	lower = make([]float64, n)
	if p <= 0 {
		for i := range mid {
			upper[i], mid[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
		}
		return upper, mid, lower
	}

	var sum, sum2 float64
	for i := 0; i < n; i++ {
		sum += close[i]
		sum2 += close[i] * close[i]
		if i < p-1 {
			upper[i], mid[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		if i >= p {
			sum -= close[i-p]
			sum2 -= close[i-p] * close[i-p]
		}
		m := sum / float64(p)
		v := sum2/float64(p) - m*m
		if v < 0 {
			v = 0
		}
		sd := math.Sqrt(v)
		mid[i] = m
		upper[i] = m + k*sd
		lower[i] = m - k*sd
	}
	return upper, mid, lower
}
