package domain

import "time"

// Side is a trade direction. SideNone marks a bar with no tradable setup.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
	SideNone  Side = "none"
)

// Sign returns +1 for long, -1 for short, 0 for none. Level arithmetic
// mirrors through this so short setups never special-case.
func (s Side) Sign() float64 {
	switch s {
	case SideLong:
		return 1
	case SideShort:
		return -1
	default:
		return 0
	}
}

// Factor is one confidence component with its explanation. The set of
// factor names is fixed; contributions are pre-weighted points.
type Factor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
	Rationale    string  `json:"rationale"`
}

// DCALevel is a staged entry below (long) or above (short) the initial
// entry. Weight is the percentage of total position size added when the
// level is touched.
type DCALevel struct {
	Price  float64 `json:"price"`
	Weight float64 `json:"weight"`
}

// Setup is the immutable result of evaluating one bar. Exactly one Setup
// per evaluation; direction none carries zero confidence and no levels.
type Setup struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Interval   Timeframe `json:"interval"`
	BarIndex   int       `json:"bar_index"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  Side      `json:"direction"`
	Confidence float64   `json:"confidence"`
	Entry      float64   `json:"entry,omitempty"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	DCALevels  []DCALevel `json:"dca_levels,omitempty"`
	Factors    []Factor   `json:"factors,omitempty"`
}

// Tradable reports whether the setup has a direction and clears the
// given confidence threshold.
func (s Setup) Tradable(minConfidence float64) bool {
	if s.Direction != SideLong && s.Direction != SideShort {
		return false
	}
	return s.Confidence >= minConfidence
}

// RiskPerUnit is the entry-to-stop distance. Zero for direction none.
func (s Setup) RiskPerUnit() float64 {
	if s.Direction == SideNone {
		return 0
	}
	d := s.Entry - s.StopLoss
	if d < 0 {
		d = -d
	}
	return d
}

// MarketSnapshot carries derivatives context fetched alongside candles.
// Values are informational; detection never depends on their presence.
type MarketSnapshot struct {
	Symbol         string    `json:"symbol"`
	OpenInterest   float64   `json:"open_interest"`
	FundingRate    float64   `json:"funding_rate"`
	LongShortRatio float64   `json:"long_short_ratio"`
	FetchedAt      time.Time `json:"fetched_at"`
}
