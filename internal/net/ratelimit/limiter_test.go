package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesBurst(t *testing.T) {
	l := NewLimiter(2.0, 2)

	assert.True(t, l.Allow("kline"))
	assert.True(t, l.Allow("kline"))
	assert.False(t, l.Allow("kline"), "bucket should be empty after burst")
}

func TestRoutesAreIndependent(t *testing.T) {
	l := NewLimiter(1.0, 1)

	assert.True(t, l.Allow("kline"))
	assert.True(t, l.Allow("funding"))
	assert.False(t, l.Allow("kline"))
	assert.False(t, l.Allow("funding"))
}

func TestWaitHonorsContext(t *testing.T) {
	l := NewLimiter(0.1, 1)
	l.Allow("kline")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx, "kline")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWaitPacesRequests(t *testing.T) {
	l := NewLimiter(10.0, 1)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "kline"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "kline"))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestSetRPSRetargetsExistingBuckets(t *testing.T) {
	l := NewLimiter(1.0, 2)
	l.Allow("kline")
	l.Allow("kline")
	assert.False(t, l.Allow("kline"))

	l.SetRPS(100.0)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, l.Allow("kline"))
}

func TestStatsSnapshot(t *testing.T) {
	l := NewLimiter(5.0, 10)
	l.Allow("kline")
	l.Allow("kline")

	stats := l.Stats()
	s, ok := stats["kline"]
	require.True(t, ok)
	assert.Equal(t, "kline", s.Route)
	assert.Equal(t, 5.0, s.RPS)
	assert.Equal(t, 10, s.Burst)
	assert.Less(t, s.Tokens, 10.0)
}

func TestConcurrentAllow(t *testing.T) {
	l := NewLimiter(100.0, 10)

	var allowed, blocked int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if l.Allow("kline") {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&blocked, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(250), allowed+blocked)
	assert.GreaterOrEqual(t, allowed, int64(10), "at least the burst should pass")
	assert.Greater(t, blocked, int64(0))
}
