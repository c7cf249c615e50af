package indicator

import "math"

// RSI with Wilder smoothing (alpha = 1/p). Average gain/loss seed with
// the simple mean of the first p deltas, so the first defined value sits
// at index p. A window with no losses reads 100, no gains reads 0.
func RSI(close []float64, p int) []float64 {
	out := make([]float64, len(close))
	for i := range out {
		out[i] = math.NaN()
	}
	if p <= 0 || len(close) < p+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= p; i++ {
		d := close[i] - close[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(p)
	avgLoss /= float64(p)
	out[p] = rsiValue(avgGain, avgLoss)

	for i := p + 1; i < len(close); i++ {
		d := close[i] - close[i-1]
		var gain, loss float64
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(p-1) + gain) / float64(p)
		avgLoss = (avgLoss*float64(p-1) + loss) / float64(p)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
