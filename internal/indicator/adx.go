package indicator

import "math"

// ADX with Wilder smoothing. Directional movement and true range are
// accumulated from index 1, the DI lines are defined from index p and
// ADX itself from index 2p−1 (its seed is the mean of the first p DX
// values).
func ADX(high, low, close []float64, p int) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if p <= 0 || n < 2*p {
		return out
	}

	tr := TrueRange(high, low, close)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder running sums seeded over indices 1..p.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= p; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := make([]float64, n)
	for i := range dx {
		dx[i] = math.NaN()
	}
	dx[p] = dxValue(smPlus, smMinus, smTR)
	for i := p + 1; i < n; i++ {
		smTR = smTR - smTR/float64(p) + tr[i]
		smPlus = smPlus - smPlus/float64(p) + plusDM[i]
		smMinus = smMinus - smMinus/float64(p) + minusDM[i]
		dx[i] = dxValue(smPlus, smMinus, smTR)
	}

	var seed float64
	for i := p; i < 2*p; i++ {
		seed += dx[i]
	}
	out[2*p-1] = seed / float64(p)
	for i := 2 * p; i < n; i++ {
		out[i] = (out[i-1]*float64(p-1) + dx[i]) / float64(p)
	}
	return out
}

func dxValue(smPlus, smMinus, smTR float64) float64 {
	if smTR == 0 {
		return 0
	}
	plusDI := 100 * smPlus / smTR
	minusDI := 100 * smMinus / smTR
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}
