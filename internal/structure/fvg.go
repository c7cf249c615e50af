package structure

import "github.com/quantonic/setforge/internal/domain"

// Gap is a fair value gap: a price imbalance left by a sharp 3-bar move.
// Bullish when bar[i].Low clears bar[i-2].High, bearish mirrored. Filled
// gaps stay in the list for history but are skipped in scoring.
type Gap struct {
	Direction domain.Side `json:"direction"`
	Low       float64     `json:"low"`
	High      float64     `json:"high"`
	FormedAt  int         `json:"formed_at"`
	Filled    bool        `json:"filled"`
}

// Contains reports whether a price sits inside the gap range.
func (g Gap) Contains(price float64) bool {
	return price >= g.Low && price <= g.High
}

// Gaps scans the window for 3-bar fair value gaps and marks each one
// filled once a later bar's range trades back into it.
func Gaps(candles []domain.Candle) []Gap {
	if len(candles) < 3 {
		return nil
	}
	var out []Gap
	for i := 2; i < len(candles); i++ {
		if candles[i].Low > candles[i-2].High {
			out = append(out, Gap{
				Direction: domain.SideLong,
				Low:       candles[i-2].High,
				High:      candles[i].Low,
				FormedAt:  i,
			})
		} else if candles[i].High < candles[i-2].Low {
			out = append(out, Gap{
				Direction: domain.SideShort,
				Low:       candles[i].High,
				High:      candles[i-2].Low,
				FormedAt:  i,
			})
		}
	}
	for gi := range out {
		g := &out[gi]
		for j := g.FormedAt + 1; j < len(candles); j++ {
			if candles[j].Low < g.High && candles[j].High > g.Low {
				g.Filled = true
				break
			}
		}
	}
	return out
}
