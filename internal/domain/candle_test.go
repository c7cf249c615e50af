package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkCandles(n int, start time.Time, step time.Duration) []Candle {
	out := make([]Candle, n)
	for i := range out {
		px := 100.0 + float64(i)
		out[i] = Candle{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      px,
			High:      px + 1,
			Low:       px - 1,
			Close:     px + 0.5,
			Volume:    1000,
		}
	}
	return out
}

func TestNewSeriesValidation(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("accepts ordered candles", func(t *testing.T) {
		s, err := NewSeries("BTCUSDT", TF1h, mkCandles(10, start, time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 10, s.Len())
		assert.Equal(t, "BTCUSDT", s.Symbol)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := NewSeries("BTCUSDT", TF1h, nil)
		require.ErrorIs(t, err, ErrEmptySeries)
	})

	t.Run("rejects duplicate timestamps", func(t *testing.T) {
		candles := mkCandles(5, start, time.Hour)
		candles[3].Timestamp = candles[2].Timestamp
		_, err := NewSeries("BTCUSDT", TF1h, candles)
		require.ErrorIs(t, err, ErrNonMonotonic)
	})

	t.Run("rejects reversed timestamps", func(t *testing.T) {
		candles := mkCandles(5, start, time.Hour)
		candles[1], candles[2] = candles[2], candles[1]
		_, err := NewSeries("BTCUSDT", TF1h, candles)
		require.ErrorIs(t, err, ErrNonMonotonic)
	})

	t.Run("rejects NaN prices", func(t *testing.T) {
		candles := mkCandles(5, start, time.Hour)
		candles[4].Close = math.NaN()
		_, err := NewSeries("BTCUSDT", TF1h, candles)
		require.ErrorIs(t, err, ErrBadCandle)
	})

	t.Run("rejects high below low", func(t *testing.T) {
		candles := mkCandles(5, start, time.Hour)
		candles[0].High = candles[0].Low - 1
		_, err := NewSeries("BTCUSDT", TF1h, candles)
		require.ErrorIs(t, err, ErrBadCandle)
	})
}

func TestDropForming(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSeries("ETHUSDT", TF15m, mkCandles(8, start, 15*time.Minute))
	require.NoError(t, err)

	closed, err := s.DropForming()
	require.NoError(t, err)
	assert.Equal(t, 7, closed.Len())
	assert.Equal(t, s.Candles[6].Timestamp, closed.Last().Timestamp)
	// original untouched
	assert.Equal(t, 8, s.Len())

	single, err := NewSeries("ETHUSDT", TF15m, mkCandles(1, start, 15*time.Minute))
	require.NoError(t, err)
	_, err = single.DropForming()
	assert.Error(t, err)
}

func TestProjections(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSeries("BTCUSDT", TF1h, mkCandles(3, start, time.Hour))
	require.NoError(t, err)

	closes := s.Closes()
	require.Len(t, closes, 3)
	assert.Equal(t, 100.5, closes[0])
	assert.Equal(t, 102.5, closes[2])

	highs := s.Highs()
	assert.Equal(t, 103.0, highs[2])
}

func TestTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("4h")
	require.NoError(t, err)
	assert.Equal(t, TF4h, tf)
	assert.Equal(t, 240, tf.Minutes())
	assert.Equal(t, 4*time.Hour, tf.Duration())
	assert.InDelta(t, 1.5, tf.Weight(), 1e-12)

	_, err = ParseTimeframe("7m")
	assert.Error(t, err)
}

func TestSideSign(t *testing.T) {
	assert.Equal(t, 1.0, SideLong.Sign())
	assert.Equal(t, -1.0, SideShort.Sign())
	assert.Equal(t, 0.0, SideNone.Sign())
}

func TestDefined(t *testing.T) {
	assert.False(t, Defined(math.NaN()))
	assert.True(t, Defined(0))
	assert.True(t, Defined(-1.5))
}
