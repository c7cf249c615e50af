package setup

import "fmt"

// Config holds every threshold, period and weight the detector uses.
// One immutable value is passed through the whole pipeline; there is no
// process-wide state.
type Config struct {
	// Signal trigger
	EMAFastPeriod int     `yaml:"ema_fast_period"` // 9
	EMASlowPeriod int     `yaml:"ema_slow_period"` // 21
	RSIPeriod     int     `yaml:"rsi_period"`      // 14
	RSIOversold   float64 `yaml:"rsi_oversold"`    // long trigger ceiling
	RSIOverbought float64 `yaml:"rsi_overbought"`  // short trigger floor

	// Shared indicator parameters
	TrendPeriod     int     `yaml:"trend_period"` // SMA 200
	VolumeSMAPeriod int     `yaml:"volume_sma_period"`
	ATRPeriod       int     `yaml:"atr_period"`
	MACDFast        int     `yaml:"macd_fast"`
	MACDSlow        int     `yaml:"macd_slow"`
	MACDSignal      int     `yaml:"macd_signal"`
	BollingerPeriod int     `yaml:"bollinger_period"`
	BollingerK      float64 `yaml:"bollinger_k"`
	ADXPeriod       int     `yaml:"adx_period"`

	// Structural windows
	StructureLookback int     `yaml:"structure_lookback"` // S/R + FVG window
	ProfileLookback   int     `yaml:"profile_lookback"`
	ProfileBuckets    int     `yaml:"profile_buckets"`
	ValueAreaPct      float64 `yaml:"value_area_pct"`
	PivotWidth        int     `yaml:"pivot_width"`
	LevelTolerance    float64 `yaml:"level_tolerance"`
	LevelBreakBuffer  float64 `yaml:"level_break_buffer"`

	Filters FilterConfig `yaml:"filters"`
	Weights WeightConfig `yaml:"weights"`

	// Level construction
	ATRStopMultiple float64   `yaml:"atr_stop_multiple"` // 1.5
	RewardRisk      float64   `yaml:"reward_risk"`       // 2.0 → 1:2
	SRProximityATR  float64   `yaml:"sr_proximity_atr"`  // factor scoring radius
	DCAOffsetsATR   []float64 `yaml:"dca_offsets_atr"`   // 1, 2, 3
	DCAWeights      []float64 `yaml:"dca_weights"`       // 30, 30, 40 (%)
}

// FilterConfig enables the veto-only strategy filters. A filter whose
// inputs are undefined at the evaluation bar vetoes the signal.
type FilterConfig struct {
	Trend        bool    `yaml:"trend"`
	Volume       bool    `yaml:"volume"`
	ADX          bool    `yaml:"adx"`
	MACD         bool    `yaml:"macd"`
	ADXThreshold float64 `yaml:"adx_threshold"` // 20
}

// WeightConfig caps each confidence factor. The defaults sum to 100.
type WeightConfig struct {
	Trend    float64 `yaml:"trend"`    // 20 pts: price vs SMA200
	Momentum float64 `yaml:"momentum"` // 20 pts: RSI midline distance
	Volume   float64 `yaml:"volume"`   // 10 pts: volume vs its SMA
	Pattern  float64 `yaml:"pattern"`  // 15 pts: confirming candle pattern
	SR       float64 `yaml:"sr"`       // 20 pts: proximity to a level
	FVG      float64 `yaml:"fvg"`      // 15 pts: inside an unfilled gap
}

// DefaultConfig returns the production detector configuration.
func DefaultConfig() Config {
	return Config{
		EMAFastPeriod: 9,
		EMASlowPeriod: 21,
		RSIPeriod:     14,
		RSIOversold:   35,
		RSIOverbought: 65,

		TrendPeriod:     200,
		VolumeSMAPeriod: 20,
		ATRPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerK:      2.0,
		ADXPeriod:       14,

		StructureLookback: 200,
		ProfileLookback:   100,
		ProfileBuckets:    100,
		ValueAreaPct:      0.70,
		PivotWidth:        20,
		LevelTolerance:    0.005,
		LevelBreakBuffer:  0.005,

		Filters: FilterConfig{
			ADXThreshold: 20,
		},
		Weights: WeightConfig{
			Trend:    20,
			Momentum: 20,
			Volume:   10,
			Pattern:  15,
			SR:       20,
			FVG:      15,
		},

		ATRStopMultiple: 1.5,
		RewardRisk:      2.0,
		SRProximityATR:  1.0,
		DCAOffsetsATR:   []float64{1, 2, 3},
		DCAWeights:      []float64{30, 30, 40},
	}
}

// Validate rejects configurations the detector cannot honor.
func (c Config) Validate() error {
	if c.EMAFastPeriod <= 0 || c.EMASlowPeriod <= 0 || c.EMAFastPeriod >= c.EMASlowPeriod {
		return fmt.Errorf("ema periods: fast %d must be positive and below slow %d", c.EMAFastPeriod, c.EMASlowPeriod)
	}
	if c.RSIPeriod <= 0 || c.ATRPeriod <= 0 || c.TrendPeriod <= 0 || c.VolumeSMAPeriod <= 0 {
		return fmt.Errorf("indicator periods must be positive")
	}
	if c.RSIOversold <= 0 || c.RSIOverbought >= 100 || c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("rsi thresholds: oversold %.1f must sit below overbought %.1f inside (0,100)", c.RSIOversold, c.RSIOverbought)
	}
	if c.ATRStopMultiple <= 0 || c.RewardRisk <= 0 {
		return fmt.Errorf("atr stop multiple and reward/risk must be positive")
	}
	if len(c.DCAOffsetsATR) != len(c.DCAWeights) {
		return fmt.Errorf("dca offsets (%d) and weights (%d) must pair up", len(c.DCAOffsetsATR), len(c.DCAWeights))
	}
	var sum float64
	last := 0.0
	for i, off := range c.DCAOffsetsATR {
		if off <= last {
			return fmt.Errorf("dca offsets must increase strictly, got %.2f after %.2f", off, last)
		}
		last = off
		if c.DCAWeights[i] <= 0 {
			return fmt.Errorf("dca weight %d must be positive", i)
		}
		sum += c.DCAWeights[i]
	}
	if len(c.DCAWeights) > 0 && sum != 100 {
		return fmt.Errorf("dca weights must sum to 100, got %.2f", sum)
	}
	wsum := c.Weights.Trend + c.Weights.Momentum + c.Weights.Volume + c.Weights.Pattern + c.Weights.SR + c.Weights.FVG
	if wsum <= 0 {
		return fmt.Errorf("confidence weights must sum above zero")
	}
	return nil
}
