// Package setup turns a prepared candle series into a scored trade
// setup: direction, confidence breakdown and concrete price levels.
// Detection is a pure function of (series, index, config); callers get
// the same answer for the same inputs regardless of when they ask.
package setup

import (
	"fmt"
	"math"

	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/indicator"
	"github.com/quantonic/setforge/internal/structure"
)

// Factor names are a fixed enumeration; every Setup carries all six.
const (
	FactorTrend    = "trend_alignment"
	FactorMomentum = "momentum"
	FactorVolume   = "volume"
	FactorPattern  = "pattern"
	FactorSR       = "sr_proximity"
	FactorFVG      = "fvg"
)

// Detector evaluates bars against one immutable configuration.
type Detector struct {
	cfg Config
}

// NewDetector builds a detector; a zero config is replaced by defaults.
func NewDetector(cfg Config) *Detector {
	if cfg.EMAFastPeriod == 0 {
		cfg = DefaultConfig()
	}
	return &Detector{cfg: cfg}
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config { return d.cfg }

// Evaluate scores the bar at index i using only candles at or before i.
// Index 0 can never cross; insufficient indicator history fails closed
// to direction none rather than erroring.
func (d *Detector) Evaluate(s *domain.Series, i int) (domain.Setup, error) {
	if s == nil || s.Len() == 0 {
		return domain.Setup{}, domain.ErrEmptySeries
	}
	if i < 0 || i >= s.Len() {
		return domain.Setup{}, fmt.Errorf("bar index %d out of range [0,%d)", i, s.Len())
	}

	out := domain.Setup{
		Symbol:    s.Symbol,
		Interval:  s.Interval,
		BarIndex:  i,
		Timestamp: s.Candles[i].Timestamp,
		Direction: domain.SideNone,
	}
	if i == 0 {
		return out, nil
	}

	his := s.Candles[:i+1]
	closes := make([]float64, len(his))
	highs := make([]float64, len(his))
	lows := make([]float64, len(his))
	vols := make([]float64, len(his))
	for j, c := range his {
		closes[j] = c.Close
		highs[j] = c.High
		lows[j] = c.Low
		vols[j] = c.Volume
	}

	emaFast := indicator.EMA(closes, d.cfg.EMAFastPeriod)
	emaSlow := indicator.EMA(closes, d.cfg.EMASlowPeriod)
	rsi := indicator.RSI(closes, d.cfg.RSIPeriod)

	dir := rawSignal(emaFast, emaSlow, rsi, i, d.cfg)
	if dir == domain.SideNone {
		return out, nil
	}

	atr := indicator.ATR(highs, lows, closes, d.cfg.ATRPeriod)
	atrV := atr[i]
	if !domain.Defined(atrV) || atrV <= 0 {
		return out, nil
	}

	trendSMA := indicator.SMA(closes, d.cfg.TrendPeriod)
	volSMA := indicator.SMA(vols, d.cfg.VolumeSMAPeriod)
	_, _, macdHist := indicator.MACD(closes, d.cfg.MACDFast, d.cfg.MACDSlow, d.cfg.MACDSignal)

	close := closes[i]
	if vetoed(d.cfg.Filters, dir, close, vols[i], trendSMA[i], volSMA[i], macdHist[i], adxAt(d.cfg, highs, lows, closes, i)) {
		return out, nil
	}

	win := his
	if d.cfg.StructureLookback > 0 && len(win) > d.cfg.StructureLookback {
		win = win[len(win)-d.cfg.StructureLookback:]
	}
	levels := structure.Levels(win, d.cfg.PivotWidth, d.cfg.LevelTolerance, d.cfg.LevelBreakBuffer)
	// The evaluation bar trading back into a gap is the entry signal,
	// not the fill, so the fill scan only sees the bars before it.
	gaps := structure.Gaps(win[:len(win)-1])
	patterns := structure.PatternsAt(his, i)

	out.Direction = dir
	out.Factors = d.scoreFactors(dir, close, vols[i], atrV, trendSMA[i], volSMA[i], rsi[i], levels, gaps, patterns)
	var total float64
	for _, f := range out.Factors {
		total += f.Contribution
	}
	out.Confidence = math.Min(total, 100)

	d.applyLevels(&out, close, atrV, levels)
	return out, nil
}

// rawSignal detects the EMA cross + RSI extreme trigger. Both cross ends
// must be defined; an undefined RSI never triggers.
func rawSignal(emaFast, emaSlow, rsi []float64, i int, cfg Config) domain.Side {
	if !domain.Defined(emaFast[i-1]) || !domain.Defined(emaSlow[i-1]) ||
		!domain.Defined(emaFast[i]) || !domain.Defined(emaSlow[i]) || !domain.Defined(rsi[i]) {
		return domain.SideNone
	}
	before := emaFast[i-1] - emaSlow[i-1]
	after := emaFast[i] - emaSlow[i]
	switch {
	case before <= 0 && after > 0 && rsi[i] < cfg.RSIOversold:
		return domain.SideLong
	case before >= 0 && after < 0 && rsi[i] > cfg.RSIOverbought:
		return domain.SideShort
	default:
		return domain.SideNone
	}
}

// adxAt computes ADX only when its filter is on; the indicator is the
// most expensive one in the set.
func adxAt(cfg Config, highs, lows, closes []float64, i int) float64 {
	if !cfg.Filters.ADX {
		return math.NaN()
	}
	return indicator.ADX(highs, lows, closes, cfg.ADXPeriod)[i]
}

// vetoed applies the enabled strategy filters. Filters only ever veto;
// an undefined input on an enabled filter vetoes too (fails closed).
func vetoed(f FilterConfig, dir domain.Side, close, vol, trendSMA, volSMA, macdHist, adx float64) bool {
	if f.Trend {
		if !domain.Defined(trendSMA) {
			return true
		}
		if dir == domain.SideLong && close <= trendSMA {
			return true
		}
		if dir == domain.SideShort && close >= trendSMA {
			return true
		}
	}
	if f.Volume {
		if !domain.Defined(volSMA) || vol <= volSMA {
			return true
		}
	}
	if f.ADX {
		if !domain.Defined(adx) || adx < f.ADXThreshold {
			return true
		}
	}
	if f.MACD {
		if !domain.Defined(macdHist) {
			return true
		}
		if dir == domain.SideLong && macdHist <= 0 {
			return true
		}
		if dir == domain.SideShort && macdHist >= 0 {
			return true
		}
	}
	return false
}

// scoreFactors builds the six-factor confidence breakdown in fixed
// order. Zero-contribution factors keep their rationale so the caller
// can always explain the score.
func (d *Detector) scoreFactors(dir domain.Side, close, vol, atrV, trendSMA, volSMA, rsiV float64,
	levels []structure.Level, gaps []structure.Gap, patterns []structure.Pattern) []domain.Factor {

	w := d.cfg.Weights
	factors := make([]domain.Factor, 0, 6)

	// Trend alignment: binary agreement with the long-term average.
	trend := domain.Factor{Name: FactorTrend, Rationale: "sma200 unavailable"}
	if domain.Defined(trendSMA) {
		aligned := (dir == domain.SideLong && close > trendSMA) || (dir == domain.SideShort && close < trendSMA)
		if aligned {
			trend.Contribution = w.Trend
			trend.Rationale = fmt.Sprintf("close %.4f on the %s side of SMA%d %.4f", close, dir, d.cfg.TrendPeriod, trendSMA)
		} else {
			trend.Rationale = fmt.Sprintf("close %.4f against SMA%d %.4f", close, d.cfg.TrendPeriod, trendSMA)
		}
	}
	factors = append(factors, trend)

	// Momentum: RSI distance from the midline in the favorable direction.
	momentum := domain.Factor{Name: FactorMomentum, Rationale: "rsi unavailable"}
	if domain.Defined(rsiV) {
		dist := (50 - rsiV) / 50
		if dir == domain.SideShort {
			dist = (rsiV - 50) / 50
		}
		momentum.Contribution = w.Momentum * clamp01(dist)
		momentum.Rationale = fmt.Sprintf("rsi %.2f vs midline 50", rsiV)
	}
	factors = append(factors, momentum)

	// Volume: participation above the 20-bar baseline, maxing at 2x.
	volume := domain.Factor{Name: FactorVolume, Rationale: "volume baseline unavailable"}
	if domain.Defined(volSMA) && volSMA > 0 {
		ratio := vol / volSMA
		volume.Contribution = w.Volume * clamp01(ratio-1)
		volume.Rationale = fmt.Sprintf("volume %.0f is %.2fx its sma", vol, ratio)
	}
	factors = append(factors, volume)

	// Pattern: a confirming candle at the evaluation bar.
	pattern := domain.Factor{Name: FactorPattern, Rationale: "no confirming candle pattern"}
	for _, p := range patterns {
		if (dir == domain.SideLong && p.Bullish()) || (dir == domain.SideShort && p.Bearish()) {
			pattern.Contribution = w.Pattern
			pattern.Rationale = string(p.Kind)
			break
		}
	}
	factors = append(factors, pattern)

	// Support/resistance proximity within the configured ATR radius.
	sr := domain.Factor{Name: FactorSR, Rationale: "no level in range"}
	radius := d.cfg.SRProximityATR * atrV
	if radius > 0 {
		if dir == domain.SideLong {
			if sup, ok := structure.NearestSupportBelow(levels, close); ok {
				sr.Contribution = w.SR * clamp01(1-(close-sup.Price)/radius)
				sr.Rationale = fmt.Sprintf("support %.4f within %.4f of entry", sup.Price, close-sup.Price)
			}
		} else {
			if res, ok := structure.NearestResistanceAbove(levels, close); ok {
				sr.Contribution = w.SR * clamp01(1-(res.Price-close)/radius)
				sr.Rationale = fmt.Sprintf("resistance %.4f within %.4f of entry", res.Price, res.Price-close)
			}
		}
	}
	factors = append(factors, sr)

	// FVG: price sitting inside an unfilled aligned gap.
	fvg := domain.Factor{Name: FactorFVG, Rationale: "not inside an unfilled gap"}
	for _, g := range gaps {
		if g.Filled || g.Direction != dir {
			continue
		}
		if g.Contains(close) {
			fvg.Contribution = w.FVG
			fvg.Rationale = fmt.Sprintf("inside %s gap [%.4f, %.4f]", g.Direction, g.Low, g.High)
			break
		}
	}
	factors = append(factors, fvg)

	return factors
}

// applyLevels fills entry/stop/target and the staged entries. The stop
// sits at the further of the ATR multiple and the nearest level in the
// adverse direction; the target enforces the configured reward/risk.
func (d *Detector) applyLevels(out *domain.Setup, close, atrV float64, levels []structure.Level) {
	out.Entry = close
	dist := d.cfg.ATRStopMultiple * atrV
	if out.Direction == domain.SideLong {
		if sup, ok := structure.NearestSupportBelow(levels, close); ok {
			if gap := close - sup.Price; gap > dist {
				dist = gap
			}
		}
		out.StopLoss = close - dist
		out.TakeProfit = close + d.cfg.RewardRisk*(close-out.StopLoss)
	} else {
		if res, ok := structure.NearestResistanceAbove(levels, close); ok {
			if gap := res.Price - close; gap > dist {
				dist = gap
			}
		}
		out.StopLoss = close + dist
		out.TakeProfit = close - d.cfg.RewardRisk*(out.StopLoss-close)
	}

	sign := out.Direction.Sign()
	out.DCALevels = make([]domain.DCALevel, 0, len(d.cfg.DCAOffsetsATR))
	for i, off := range d.cfg.DCAOffsetsATR {
		out.DCALevels = append(out.DCALevels, domain.DCALevel{
			Price:  close - sign*off*atrV,
			Weight: d.cfg.DCAWeights[i],
		})
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
