package setup

import (
	"fmt"
	"time"

	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/indicator"
	"github.com/quantonic/setforge/internal/structure"
)

// Snapshot is the indicator and structure context at one bar, used for
// alert payloads, journal rows and the explain endpoint. Values may be
// NaN during warm-up; serializers are expected to handle that.
type Snapshot struct {
	Symbol    string           `json:"symbol"`
	Interval  domain.Timeframe `json:"interval"`
	BarIndex  int              `json:"bar_index"`
	Timestamp time.Time        `json:"timestamp"`

	Close     float64 `json:"close"`
	EMAFast   float64 `json:"ema_fast"`
	EMASlow   float64 `json:"ema_slow"`
	TrendSMA  float64 `json:"trend_sma"`
	RSI       float64 `json:"rsi"`
	MACDLine  float64 `json:"macd_line"`
	MACDSig   float64 `json:"macd_signal"`
	MACDHist  float64 `json:"macd_hist"`
	ATR       float64 `json:"atr"`
	VWAP      float64 `json:"vwap"`
	BollUpper float64 `json:"boll_upper"`
	BollMid   float64 `json:"boll_mid"`
	BollLower float64 `json:"boll_lower"`
	VolumeSMA float64 `json:"volume_sma"`
	Volume    float64 `json:"volume"`

	Profile  *structure.VolumeProfile `json:"profile,omitempty"`
	Levels   []structure.Level        `json:"levels,omitempty"`
	Gaps     []structure.Gap          `json:"gaps,omitempty"`
	Patterns []structure.Pattern      `json:"patterns,omitempty"`
}

// Snapshot captures the full evaluation context at index i. Like
// Evaluate it reads nothing past i.
func (d *Detector) Snapshot(s *domain.Series, i int) (*Snapshot, error) {
	if s == nil || s.Len() == 0 {
		return nil, domain.ErrEmptySeries
	}
	if i < 0 || i >= s.Len() {
		return nil, fmt.Errorf("bar index %d out of range [0,%d)", i, s.Len())
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
	trendSMA := indicator.SMA(closes, d.cfg.TrendPeriod)
	rsi := indicator.RSI(closes, d.cfg.RSIPeriod)
	macdLine, macdSig, macdHist := indicator.MACD(closes, d.cfg.MACDFast, d.cfg.MACDSlow, d.cfg.MACDSignal)
	atr := indicator.ATR(highs, lows, closes, d.cfg.ATRPeriod)
	vwap := indicator.VWAP(highs, lows, closes, vols)
	bu, bm, bl := indicator.Bollinger(closes, d.cfg.BollingerPeriod, d.cfg.BollingerK)
	volSMA := indicator.SMA(vols, d.cfg.VolumeSMAPeriod)

	snap := &Snapshot{
		Symbol:    s.Symbol,
		Interval:  s.Interval,
		BarIndex:  i,
		Timestamp: his[i].Timestamp,
		Close:     closes[i],
		EMAFast:   emaFast[i],
		EMASlow:   emaSlow[i],
		TrendSMA:  trendSMA[i],
		RSI:       rsi[i],
		MACDLine:  macdLine[i],
		MACDSig:   macdSig[i],
		MACDHist:  macdHist[i],
		ATR:       atr[i],
		VWAP:      vwap[i],
		BollUpper: bu[i],
		BollMid:   bm[i],
		BollLower: bl[i],
		VolumeSMA: volSMA[i],
		Volume:    vols[i],
	}

	win := his
	if d.cfg.StructureLookback > 0 && len(win) > d.cfg.StructureLookback {
		win = win[len(win)-d.cfg.StructureLookback:]
	}
	snap.Levels = structure.Levels(win, d.cfg.PivotWidth, d.cfg.LevelTolerance, d.cfg.LevelBreakBuffer)
	// Same fill horizon as Evaluate: the snapshot bar itself never
	// counts as the fill.
	snap.Gaps = structure.Gaps(win[:len(win)-1])
	snap.Patterns = structure.PatternsAt(his, i)

	pw := his
	if d.cfg.ProfileLookback > 0 && len(pw) > d.cfg.ProfileLookback {
		pw = pw[len(pw)-d.cfg.ProfileLookback:]
	}
	if vp, err := structure.Profile(pw, d.cfg.ProfileBuckets, d.cfg.ValueAreaPct); err == nil {
		snap.Profile = vp
	}
	return snap, nil
}
