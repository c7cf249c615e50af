// Package indicator computes standard technical indicators as pure
// functions over parallel price arrays. Every function returns a slice
// aligned to its input with math.NaN for warm-up gaps; the value at
// index i depends only on inputs at indices <= i.
package indicator

import "math"

// SMA over the last p points; NaN until index p-1.
func SMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		if i >= p {
			sum -= x[i-p]
		}
		out[i] = sum / float64(p)
	}
	return out
}

// EMA with smoothing k = 2/(p+1), seeded with SMA(p) at index p-1.
// NaN until the seed index.
func EMA(x []float64, p int) []float64 {
	return emaFrom(x, p, 0)
}

// emaFrom runs the EMA recursion over x[start:], seeding with the simple
// mean of the first p values from start. Indices before start+p-1 are NaN.
func emaFrom(x []float64, p, start int) []float64 {
	if p <= 0 || start < 0 {
		return nil
	}
	out := make([]float64, len(x))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(x)-start < p {
		return out
	}
	var seed float64
	for i := start; i < start+p; i++ {
		seed += x[i]
	}
	seed /= float64(p)
	out[start+p-1] = seed
	k := 2.0 / float64(p+1)
	for i := start + p; i < len(x); i++ {
		out[i] = (x[i]-out[i-1])*k + out[i-1]
	}
	return out
}
