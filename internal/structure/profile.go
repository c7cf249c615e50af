// Package structure derives higher-level features from raw candles:
// volume profile, fair value gaps, candlestick patterns and
// support/resistance levels. Everything is recomputed per call over the
// window the caller passes in; nothing is cached across evaluations.
package structure

import (
	"errors"

	"github.com/quantonic/setforge/internal/domain"
)

// ErrEmptyWindow is returned when a feature is requested over no candles.
var ErrEmptyWindow = errors.New("empty analysis window")

// ProfileBucket is one price slice of the volume profile.
type ProfileBucket struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Volume float64 `json:"volume"`
}

// VolumeProfile summarizes where volume traded inside a window.
// Each bar's volume is attributed to the bucket containing its close.
type VolumeProfile struct {
	POC           float64         `json:"poc"`
	ValueAreaHigh float64         `json:"value_area_high"`
	ValueAreaLow  float64         `json:"value_area_low"`
	TotalVolume   float64         `json:"total_volume"`
	Buckets       []ProfileBucket `json:"buckets"`
}

// Profile partitions the window's close-price range into bucketCount
// equal-width buckets. POC is the midpoint of the heaviest bucket; the
// value area grows greedily outward from the POC (heavier neighbor
// first) until it holds at least valueAreaPct of total volume.
func Profile(candles []domain.Candle, bucketCount int, valueAreaPct float64) (*VolumeProfile, error) {
	if len(candles) == 0 {
		return nil, ErrEmptyWindow
	}
	if bucketCount <= 0 {
		bucketCount = 100
	}
	if valueAreaPct <= 0 || valueAreaPct > 1 {
		valueAreaPct = 0.70
	}

	minPx, maxPx := candles[0].Close, candles[0].Close
	for _, c := range candles[1:] {
		if c.Close < minPx {
			minPx = c.Close
		}
		if c.Close > maxPx {
			maxPx = c.Close
		}
	}

	// Degenerate flat window collapses to a single bucket.
	if maxPx == minPx {
		var total float64
		for _, c := range candles {
			total += c.Volume
		}
		b := ProfileBucket{Low: minPx, High: maxPx, Volume: total}
		return &VolumeProfile{
			POC: minPx, ValueAreaHigh: maxPx, ValueAreaLow: minPx,
			TotalVolume: total, Buckets: []ProfileBucket{b},
		}, nil
	}

	width := (maxPx - minPx) / float64(bucketCount)
	buckets := make([]ProfileBucket, bucketCount)
	for i := range buckets {
		buckets[i].Low = minPx + float64(i)*width
		buckets[i].High = buckets[i].Low + width
	}

	var total float64
	for _, c := range candles {
		idx := int((c.Close - minPx) / width)
		if idx >= bucketCount {
			idx = bucketCount - 1
		}
		buckets[idx].Volume += c.Volume
		total += c.Volume
	}

	poc := 0
	for i, b := range buckets {
		if b.Volume > buckets[poc].Volume {
			poc = i
		}
	}

	lo, hi := poc, poc
	vaVolume := buckets[poc].Volume
	for vaVolume < valueAreaPct*total && (lo > 0 || hi < bucketCount-1) {
		var left, right float64 = -1, -1
		if lo > 0 {
			left = buckets[lo-1].Volume
		}
		if hi < bucketCount-1 {
			right = buckets[hi+1].Volume
		}
		if right > left {
			hi++
			vaVolume += buckets[hi].Volume
		} else {
			lo--
			vaVolume += buckets[lo].Volume
		}
	}

	return &VolumeProfile{
		POC:           (buckets[poc].Low + buckets[poc].High) / 2,
		ValueAreaHigh: buckets[hi].High,
		ValueAreaLow:  buckets[lo].Low,
		TotalVolume:   total,
		Buckets:       buckets,
	}, nil
}
