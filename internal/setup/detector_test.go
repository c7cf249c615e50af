package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/sim"
)

func TestEvaluateLongSetup(t *testing.T) {
	series := sim.VBottomLong("BTCUSDT", domain.TF1h)
	d := NewDetector(DefaultConfig())

	st, err := d.Evaluate(series, sim.SignalIndex)
	require.NoError(t, err)
	require.Equal(t, domain.SideLong, st.Direction)

	bar := series.Candles[sim.SignalIndex]
	assert.Equal(t, bar.Close, st.Entry, "entry is the signal bar close")
	assert.Equal(t, bar.Timestamp, st.Timestamp)
	assert.Less(t, st.StopLoss, st.Entry)
	assert.Greater(t, st.TakeProfit, st.Entry)

	// The target must sit at exactly twice the stop distance.
	assert.InDelta(t, 2*(st.Entry-st.StopLoss), st.TakeProfit-st.Entry, 1e-9)

	assert.Greater(t, st.Confidence, 0.0)
	assert.LessOrEqual(t, st.Confidence, 100.0)
	require.Len(t, st.Factors, 6)
	for _, f := range st.Factors {
		assert.NotEmpty(t, f.Rationale, "factor %s must explain itself", f.Name)
		assert.GreaterOrEqual(t, f.Contribution, 0.0)
	}
}

func TestEvaluateShortSetupMirrors(t *testing.T) {
	series := sim.VBottomShort("BTCUSDT", domain.TF1h)
	d := NewDetector(DefaultConfig())

	st, err := d.Evaluate(series, sim.SignalIndex)
	require.NoError(t, err)
	require.Equal(t, domain.SideShort, st.Direction)

	assert.Greater(t, st.StopLoss, st.Entry)
	assert.Less(t, st.TakeProfit, st.Entry)
	assert.InDelta(t, 2*(st.StopLoss-st.Entry), st.Entry-st.TakeProfit, 1e-9)
}

func TestDCALevelMonotonicity(t *testing.T) {
	d := NewDetector(DefaultConfig())

	long, err := d.Evaluate(sim.VBottomLong("BTCUSDT", domain.TF1h), sim.SignalIndex)
	require.NoError(t, err)
	require.Len(t, long.DCALevels, 3)
	var sum float64
	for i, lv := range long.DCALevels {
		assert.Less(t, lv.Price, long.Entry)
		if i > 0 {
			assert.Less(t, lv.Price, long.DCALevels[i-1].Price, "long levels must fall strictly")
		}
		sum += lv.Weight
	}
	assert.Equal(t, 100.0, sum)

	short, err := d.Evaluate(sim.VBottomShort("BTCUSDT", domain.TF1h), sim.SignalIndex)
	require.NoError(t, err)
	require.Len(t, short.DCALevels, 3)
	sum = 0
	for i, lv := range short.DCALevels {
		assert.Greater(t, lv.Price, short.Entry)
		if i > 0 {
			assert.Greater(t, lv.Price, short.DCALevels[i-1].Price, "short levels must rise strictly")
		}
		sum += lv.Weight
	}
	assert.Equal(t, 100.0, sum)
}

func TestFixtureFiresExactlyOnce(t *testing.T) {
	series := sim.VBottomLong("BTCUSDT", domain.TF1h)
	d := NewDetector(DefaultConfig())

	var fired []int
	for i := 0; i < series.Len(); i++ {
		st, err := d.Evaluate(series, i)
		require.NoError(t, err)
		if st.Direction != domain.SideNone {
			fired = append(fired, i)
		}
	}
	assert.Equal(t, []int{sim.SignalIndex}, fired)
}

func TestEvaluateCausality(t *testing.T) {
	series := sim.VBottomLong("BTCUSDT", domain.TF1h)
	d := NewDetector(DefaultConfig())

	want, err := d.Evaluate(series, sim.SignalIndex)
	require.NoError(t, err)

	// Rewrite every bar after the evaluation index with garbage prices;
	// the setup at the evaluation index must not move.
	mutated := make([]domain.Candle, series.Len())
	copy(mutated, series.Candles)
	for i := sim.SignalIndex + 1; i < len(mutated); i++ {
		mutated[i].Open = 5
		mutated[i].High = 9999
		mutated[i].Low = 1
		mutated[i].Close = 7777
		mutated[i].Volume = 0
	}
	ms, err := domain.NewSeries(series.Symbol, series.Interval, mutated)
	require.NoError(t, err)

	got, err := d.Evaluate(ms, sim.SignalIndex)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFiltersVetoOnly(t *testing.T) {
	series := sim.VBottomLong("BTCUSDT", domain.TF1h)

	// Flat-volume variant: the signal bar's volume equals its baseline,
	// which is not strictly above it, so the volume filter vetoes.
	flat := make([]domain.Candle, series.Len())
	copy(flat, series.Candles)
	for i := range flat {
		flat[i].Volume = 1000
	}
	flatSeries, err := domain.NewSeries(series.Symbol, series.Interval, flat)
	require.NoError(t, err)

	cases := []struct {
		name   string
		series *domain.Series
		mutate func(*Config)
		want   domain.Side
	}{
		{
			name:   "no filters pass the raw signal through",
			series: series,
			mutate: func(c *Config) {},
			want:   domain.SideLong,
		},
		{
			name:   "trend filter vetoes a long below the trend average",
			series: series,
			mutate: func(c *Config) { c.Filters.Trend = true },
			want:   domain.SideNone,
		},
		{
			name:   "volume filter passes on a participation spike",
			series: series,
			mutate: func(c *Config) { c.Filters.Volume = true },
			want:   domain.SideLong,
		},
		{
			name:   "volume filter vetoes flat participation",
			series: flatSeries,
			mutate: func(c *Config) { c.Filters.Volume = true },
			want:   domain.SideNone,
		},
		{
			name:   "adx filter passes above its threshold",
			series: series,
			mutate: func(c *Config) { c.Filters.ADX = true; c.Filters.ADXThreshold = 20 },
			want:   domain.SideLong,
		},
		{
			name:   "adx filter vetoes below its threshold",
			series: series,
			mutate: func(c *Config) { c.Filters.ADX = true; c.Filters.ADXThreshold = 90 },
			want:   domain.SideNone,
		},
		{
			name:   "macd filter passes an agreeing histogram",
			series: series,
			mutate: func(c *Config) { c.Filters.MACD = true },
			want:   domain.SideLong,
		},
		{
			name:   "undefined macd on an enabled filter fails closed",
			series: series,
			mutate: func(c *Config) { c.Filters.MACD = true; c.MACDSlow = 300 },
			want:   domain.SideNone,
		},
		{
			name:   "undefined trend average on an enabled filter fails closed",
			series: series,
			mutate: func(c *Config) { c.Filters.Trend = true; c.TrendPeriod = 5000 },
			want:   domain.SideNone,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			st, err := NewDetector(cfg).Evaluate(tc.series, sim.SignalIndex)
			require.NoError(t, err)
			assert.Equal(t, tc.want, st.Direction)
			if tc.want == domain.SideNone {
				assert.Zero(t, st.Confidence)
				assert.Empty(t, st.DCALevels)
			}
		})
	}
}

func TestFVGFactorScoresGapReentry(t *testing.T) {
	series := sim.GapReentryLong("BTCUSDT", domain.TF1h)
	d := NewDetector(DefaultConfig())

	st, err := d.Evaluate(series, sim.GapSignalIndex)
	require.NoError(t, err)
	require.Equal(t, domain.SideLong, st.Direction)

	var fvg domain.Factor
	for _, f := range st.Factors {
		if f.Name == FactorFVG {
			fvg = f
		}
	}
	// The signal bar dipping back into the gap is what scores it; the
	// dip itself must not count as the fill.
	assert.Equal(t, DefaultConfig().Weights.FVG, fvg.Contribution)
	assert.Contains(t, fvg.Rationale, "inside")
}

func TestConfidenceCappedAtHundred(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = WeightConfig{Trend: 200, Momentum: 200, Volume: 200, Pattern: 200, SR: 200, FVG: 200}

	st, err := NewDetector(cfg).Evaluate(sim.VBottomLong("BTCUSDT", domain.TF1h), sim.SignalIndex)
	require.NoError(t, err)
	require.Equal(t, domain.SideLong, st.Direction)
	assert.Equal(t, 100.0, st.Confidence)
}

func TestEvaluateFailsClosedOnShortHistory(t *testing.T) {
	series := sim.Trending("ETHUSDT", domain.TF1h, 10, 100, 1)
	d := NewDetector(DefaultConfig())

	st, err := d.Evaluate(series, series.Len()-1)
	require.NoError(t, err)
	assert.Equal(t, domain.SideNone, st.Direction)
	assert.Zero(t, st.Confidence)
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	d := NewDetector(DefaultConfig())

	_, err := d.Evaluate(nil, 0)
	assert.ErrorIs(t, err, domain.ErrEmptySeries)

	series := sim.Trending("ETHUSDT", domain.TF1h, 10, 100, 1)
	_, err = d.Evaluate(series, 10)
	assert.Error(t, err)
	_, err = d.Evaluate(series, -1)
	assert.Error(t, err)
}

func TestTrendingSeriesStaysQuiet(t *testing.T) {
	series := sim.Trending("SOLUSDT", domain.TF1h, 300, 50, 0.5)
	d := NewDetector(DefaultConfig())
	for i := 0; i < series.Len(); i++ {
		st, err := d.Evaluate(series, i)
		require.NoError(t, err)
		require.Equal(t, domain.SideNone, st.Direction, "unexpected setup at bar %d", i)
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.EMAFastPeriod = 21
	bad.EMASlowPeriod = 9
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.DCAWeights = []float64{50, 50, 50}
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.DCAOffsetsATR = []float64{1, 1, 2}
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.RSIOversold = 70
	assert.Error(t, bad.Validate())
}

func TestSnapshotAlignsWithEvaluate(t *testing.T) {
	series := sim.VBottomLong("BTCUSDT", domain.TF1h)
	d := NewDetector(DefaultConfig())

	snap, err := d.Snapshot(series, sim.SignalIndex)
	require.NoError(t, err)
	assert.Equal(t, series.Candles[sim.SignalIndex].Close, snap.Close)
	assert.True(t, domain.Defined(snap.RSI))
	assert.Less(t, snap.RSI, 35.0)
	assert.True(t, domain.Defined(snap.ATR))
	assert.Greater(t, snap.EMAFast, snap.EMASlow, "fast average crossed above at the signal bar")
	require.NotNil(t, snap.Profile)
	assert.GreaterOrEqual(t, snap.Profile.ValueAreaHigh, snap.Profile.ValueAreaLow)
	assert.Greater(t, snap.Profile.TotalVolume, 0.0)

	_, err = d.Snapshot(series, -1)
	assert.Error(t, err)
}
