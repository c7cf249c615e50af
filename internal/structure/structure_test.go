package structure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantonic/setforge/internal/domain"
)

func mkCandle(i int, h, l float64) domain.Candle {
	mid := (h + l) / 2
	return domain.Candle{
		Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		Open:      mid,
		High:      h,
		Low:       l,
		Close:     mid,
		Volume:    1000,
	}
}

func closeCandle(i int, close, volume float64) domain.Candle {
	return domain.Candle{
		Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		Open:      close,
		High:      close + 0.2,
		Low:       close - 0.2,
		Close:     close,
		Volume:    volume,
	}
}

func TestProfileCloseAttribution(t *testing.T) {
	candles := []domain.Candle{
		closeCandle(0, 100.0, 10),
		closeCandle(1, 101.5, 50),
		closeCandle(2, 102.5, 100),
		closeCandle(3, 103.5, 30),
		closeCandle(4, 105.0, 20),
	}
	vp, err := Profile(candles, 5, 0.70)
	require.NoError(t, err)

	require.Len(t, vp.Buckets, 5)
	assert.InDelta(t, 210.0, vp.TotalVolume, 1e-9)
	assert.InDelta(t, 10, vp.Buckets[0].Volume, 1e-9)
	assert.InDelta(t, 50, vp.Buckets[1].Volume, 1e-9)
	assert.InDelta(t, 100, vp.Buckets[2].Volume, 1e-9)
	assert.InDelta(t, 30, vp.Buckets[3].Volume, 1e-9)
	// top-edge close clamps into the final bucket
	assert.InDelta(t, 20, vp.Buckets[4].Volume, 1e-9)

	assert.InDelta(t, 102.5, vp.POC, 1e-9)
	// greedy expansion grabs the heavier left neighbor and stops at >=70%
	assert.InDelta(t, 101.0, vp.ValueAreaLow, 1e-9)
	assert.InDelta(t, 103.0, vp.ValueAreaHigh, 1e-9)
}

func TestProfileFlatWindow(t *testing.T) {
	candles := []domain.Candle{
		closeCandle(0, 50, 10),
		closeCandle(1, 50, 20),
	}
	vp, err := Profile(candles, 100, 0.70)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, vp.POC, 1e-9)
	assert.InDelta(t, 50.0, vp.ValueAreaHigh, 1e-9)
	assert.InDelta(t, 50.0, vp.ValueAreaLow, 1e-9)
	assert.Len(t, vp.Buckets, 1)
	assert.InDelta(t, 30.0, vp.TotalVolume, 1e-9)
}

func TestProfileEmptyWindow(t *testing.T) {
	_, err := Profile(nil, 100, 0.70)
	require.ErrorIs(t, err, ErrEmptyWindow)
}

func TestGaps(t *testing.T) {
	t.Run("bullish gap forms and fills", func(t *testing.T) {
		candles := []domain.Candle{
			mkCandle(0, 10, 9),
			mkCandle(1, 11, 9.8),
			mkCandle(2, 12.5, 11), // low 11 > high[0] 10: gap [10, 11]
			mkCandle(3, 13, 12),
			mkCandle(4, 12.5, 10.5), // trades back into the gap
		}
		gaps := Gaps(candles)
		require.Len(t, gaps, 1)
		g := gaps[0]
		assert.Equal(t, domain.SideLong, g.Direction)
		assert.InDelta(t, 10.0, g.Low, 1e-9)
		assert.InDelta(t, 11.0, g.High, 1e-9)
		assert.Equal(t, 2, g.FormedAt)
		assert.True(t, g.Filled)
		assert.True(t, g.Contains(10.5))
		assert.False(t, g.Contains(11.5))
	})

	t.Run("gap stays open when price never returns", func(t *testing.T) {
		candles := []domain.Candle{
			mkCandle(0, 10, 9),
			mkCandle(1, 11, 9.8),
			mkCandle(2, 12.5, 11),
			mkCandle(3, 13, 11.5),
			mkCandle(4, 14, 12),
		}
		gaps := Gaps(candles)
		require.Len(t, gaps, 1)
		assert.False(t, gaps[0].Filled)
	})

	t.Run("bearish gap", func(t *testing.T) {
		candles := []domain.Candle{
			mkCandle(0, 20, 19),
			mkCandle(1, 19.5, 18),
			mkCandle(2, 18.5, 17.5), // high 18.5 < low[0] 19: gap [18.5, 19]
		}
		gaps := Gaps(candles)
		require.Len(t, gaps, 1)
		assert.Equal(t, domain.SideShort, gaps[0].Direction)
		assert.InDelta(t, 18.5, gaps[0].Low, 1e-9)
		assert.InDelta(t, 19.0, gaps[0].High, 1e-9)
	})

	t.Run("too short", func(t *testing.T) {
		assert.Nil(t, Gaps([]domain.Candle{mkCandle(0, 10, 9)}))
	})
}

func TestEngulfing(t *testing.T) {
	bearish := domain.Candle{Open: 105, High: 106, Low: 99, Close: 100}
	bullish := domain.Candle{Open: 99.5, High: 107, Low: 99, Close: 106}
	assert.True(t, IsBullishEngulfing(bearish, bullish))
	assert.False(t, IsBearishEngulfing(bearish, bullish))

	// mirrored
	up := domain.Candle{Open: 100, High: 106, Low: 99, Close: 105}
	down := domain.Candle{Open: 105.5, High: 106, Low: 98, Close: 99.5}
	assert.True(t, IsBearishEngulfing(up, down))

	// body containment boundary counts (equality allowed)
	exact := domain.Candle{Open: 100, High: 106, Low: 99, Close: 105}
	assert.True(t, IsBullishEngulfing(domain.Candle{Open: 105, High: 106, Low: 99, Close: 100}, exact))
}

func TestHammer(t *testing.T) {
	assert.True(t, IsHammer(domain.Candle{Open: 100, High: 100.7, Low: 98.5, Close: 100.5}))
	// upper wick too long
	assert.False(t, IsHammer(domain.Candle{Open: 100, High: 102, Low: 98.5, Close: 100.5}))
	// lower wick too short
	assert.False(t, IsHammer(domain.Candle{Open: 100, High: 100.7, Low: 99.8, Close: 100.5}))
}

func TestPatternsAt(t *testing.T) {
	candles := []domain.Candle{
		{Open: 105, High: 106, Low: 99, Close: 100},
		{Open: 99.5, High: 107, Low: 99, Close: 106},
	}
	pats := PatternsAt(candles, 1)
	require.Len(t, pats, 1)
	assert.Equal(t, PatternEngulfingBullish, pats[0].Kind)
	assert.True(t, pats[0].Bullish())

	assert.Nil(t, PatternsAt(candles, 0))
	assert.Nil(t, PatternsAt(candles, 2))
}

func TestLevels(t *testing.T) {
	highs := []float64{10, 11, 15, 11, 10, 9, 8, 12, 9, 8, 8}
	lows := []float64{9, 10, 14, 10, 9, 8, 7, 11, 8, 7, 7}
	candles := make([]domain.Candle, len(highs))
	for i := range highs {
		candles[i] = mkCandle(i, highs[i], lows[i])
	}

	levels := Levels(candles, 2, 0.005, 0.005)
	require.Len(t, levels, 3)

	// sorted ascending by price: support 7, resistance 12, resistance 15
	assert.Equal(t, LevelSupport, levels[0].Kind)
	assert.InDelta(t, 7.0, levels[0].Price, 1e-9)
	assert.Equal(t, LevelResistance, levels[1].Kind)
	assert.InDelta(t, 12.0, levels[1].Price, 1e-9)
	assert.Equal(t, LevelResistance, levels[2].Kind)
	assert.InDelta(t, 15.0, levels[2].Price, 1e-9)

	sup, ok := NearestSupportBelow(levels, 10)
	require.True(t, ok)
	assert.InDelta(t, 7.0, sup.Price, 1e-9)

	res, ok := NearestResistanceAbove(levels, 10)
	require.True(t, ok)
	assert.InDelta(t, 12.0, res.Price, 1e-9)

	_, ok = NearestSupportBelow(levels, 6)
	assert.False(t, ok)
}

func TestLevelRetirement(t *testing.T) {
	highs := []float64{10, 11, 15, 11, 10, 9, 8, 12, 9, 8, 8, 7, 7}
	lows := []float64{9, 10, 14, 10, 9, 8, 7, 11, 8, 7, 7, 6, 6}
	candles := make([]domain.Candle, len(highs))
	for i := range highs {
		candles[i] = mkCandle(i, highs[i], lows[i])
	}

	levels := Levels(candles, 2, 0.005, 0.005)
	for _, l := range levels {
		assert.NotEqual(t, LevelSupport, l.Kind, "support at 7 should be retired by closes below it")
	}
}

func TestLevelMerge(t *testing.T) {
	highs := []float64{10, 11, 15, 11, 10, 11, 15.02, 11, 10, 10, 10}
	lows := make([]float64, len(highs))
	for i := range lows {
		lows[i] = 9
	}
	candles := make([]domain.Candle, len(highs))
	for i := range highs {
		candles[i] = mkCandle(i, highs[i], lows[i])
	}

	levels := Levels(candles, 2, 0.005, 0.01)
	require.Len(t, levels, 1)
	assert.Equal(t, 2, levels[0].Strength)
	assert.InDelta(t, 15.02, levels[0].Price, 1e-9)
}

func TestLevelsWindowTooSmall(t *testing.T) {
	candles := []domain.Candle{mkCandle(0, 10, 9), mkCandle(1, 11, 10)}
	assert.Nil(t, Levels(candles, 2, 0.005, 0.005))
}
