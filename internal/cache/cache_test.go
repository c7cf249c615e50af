package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantonic/setforge/internal/domain"
)

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	s.Set(ctx, "a", []byte("one"), 0)
	v, ok := s.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("one"), v)

	s.Set(ctx, "b", []byte("two"), time.Nanosecond)
	time.Sleep(5 * time.Millisecond)
	_, ok = s.Get(ctx, "b")
	assert.False(t, ok)

	_, ok = s.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestMemoryStoreCopiesValue(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	buf := []byte("abc")
	s.Set(ctx, "k", buf, 0)
	buf[0] = 'z'

	v, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), v)
}

func TestNewAutoFallsBackToMemory(t *testing.T) {
	s := NewAuto("", 0)
	_, isMem := s.(*memory)
	assert.True(t, isMem)

	r := NewAuto("localhost:6379", 1)
	_, isRedis := r.(*redisStore)
	assert.True(t, isRedis)
}

func TestCandlesRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewCandles(NewMemory(), time.Minute)

	in := []domain.Candle{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{Timestamp: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 1100},
	}
	key := Key("BTCUSDT", domain.TF1h, 500)
	assert.Equal(t, "klines:BTCUSDT:1h:500", key)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Put(ctx, key, in)
	out, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestCandlesIgnoresCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	c := NewCandles(store, time.Minute)

	store.Set(ctx, "bad", []byte("{not json"), 0)
	_, ok := c.Get(ctx, "bad")
	assert.False(t, ok)
}
