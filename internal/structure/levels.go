package structure

import (
	"sort"

	"github.com/quantonic/setforge/internal/domain"
)

// LevelKind separates supports from resistances.
type LevelKind string

const (
	LevelSupport    LevelKind = "support"
	LevelResistance LevelKind = "resistance"
)

// Level is a support or resistance price derived from fractal pivots.
// Strength counts the pivots that clustered into it.
type Level struct {
	Price    float64   `json:"price"`
	Kind     LevelKind `json:"kind"`
	Strength int       `json:"strength"`
	FormedAt int       `json:"formed_at"`
}

// pivot is a confirmed fractal extreme inside the window.
type pivot struct {
	idx   int
	price float64
	high  bool
}

// Levels detects support/resistance from fractal pivots: bar i is a
// pivot high when high[i] is the strict maximum over ±width bars, pivot
// low mirrored. A pivot only exists once its right neighborhood lies
// inside the window, so results never depend on bars after the window
// end. Pivots within tolerance (fraction of price) merge into one level;
// a level is retired once any later close breaches it by breakBuffer.
func Levels(candles []domain.Candle, width int, tolerance, breakBuffer float64) []Level {
	if width <= 0 || len(candles) < 2*width+1 {
		return nil
	}

	var pivots []pivot
	for i := width; i < len(candles)-width; i++ {
		isHigh, isLow := true, true
		for j := i - width; j <= i+width; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			pivots = append(pivots, pivot{idx: i, price: candles[i].High, high: true})
		} else if isLow {
			pivots = append(pivots, pivot{idx: i, price: candles[i].Low, high: false})
		}
	}

	var levels []Level
	for _, p := range pivots {
		kind := LevelSupport
		if p.high {
			kind = LevelResistance
		}
		merged := false
		for li := range levels {
			l := &levels[li]
			if l.Kind != kind {
				continue
			}
			if relDiff(l.Price, p.price) <= tolerance {
				// keep the most recent touch as the level price
				l.Price = p.price
				l.Strength++
				l.FormedAt = p.idx
				merged = true
				break
			}
		}
		if !merged {
			levels = append(levels, Level{Price: p.price, Kind: kind, Strength: 1, FormedAt: p.idx})
		}
	}

	// Retire levels price has decisively closed through.
	kept := levels[:0]
	for _, l := range levels {
		broken := false
		for j := l.FormedAt + width; j < len(candles); j++ {
			c := candles[j].Close
			if l.Kind == LevelSupport && c < l.Price*(1-breakBuffer) {
				broken = true
				break
			}
			if l.Kind == LevelResistance && c > l.Price*(1+breakBuffer) {
				broken = true
				break
			}
		}
		if !broken {
			kept = append(kept, l)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Price < kept[j].Price })
	return kept
}

// NearestSupportBelow returns the closest surviving support under price.
func NearestSupportBelow(levels []Level, price float64) (Level, bool) {
	var best Level
	found := false
	for _, l := range levels {
		if l.Kind != LevelSupport || l.Price >= price {
			continue
		}
		if !found || l.Price > best.Price {
			best = l
			found = true
		}
	}
	return best, found
}

// NearestResistanceAbove returns the closest surviving resistance over price.
func NearestResistanceAbove(levels []Level, price float64) (Level, bool) {
	var best Level
	found := false
	for _, l := range levels {
		if l.Kind != LevelResistance || l.Price <= price {
			continue
		}
		if !found || l.Price < best.Price {
			best = l
			found = true
		}
	}
	return best, found
}

func relDiff(a, b float64) float64 {
	if a == 0 {
		return 1
	}
	d := (a - b) / a
	if d < 0 {
		d = -d
	}
	return d
}
