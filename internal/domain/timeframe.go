package domain

import (
	"fmt"
	"time"
)

// Timeframe is a supported candle interval.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var tfMinutes = map[Timeframe]int{
	TF1m: 1, TF5m: 5, TF15m: 15, TF1h: 60, TF4h: 240, TF1d: 1440,
}

// Higher timeframes carry more signal weight in multi-timeframe
// monitoring; weighted confidence stays capped at 100.
var tfWeights = map[Timeframe]float64{
	TF1m: 0.6, TF5m: 0.8, TF15m: 1.0, TF1h: 1.2, TF4h: 1.5, TF1d: 2.0,
}

// ParseTimeframe validates an interval string.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := tfMinutes[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Minutes returns the interval length in minutes.
func (t Timeframe) Minutes() int { return tfMinutes[t] }

// Duration returns the interval length as a time.Duration.
func (t Timeframe) Duration() time.Duration { return time.Duration(tfMinutes[t]) * time.Minute }

// Weight returns the monitoring signal weight for this timeframe,
// defaulting to 1.0 for unknown values.
func (t Timeframe) Weight() float64 {
	if w, ok := tfWeights[t]; ok {
		return w
	}
	return 1.0
}

// Valid reports whether the timeframe is supported.
func (t Timeframe) Valid() bool {
	_, ok := tfMinutes[t]
	return ok
}
