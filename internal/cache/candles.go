package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantonic/setforge/internal/domain"
)

// Candles is a typed view over a Store for kline series.
type Candles struct {
	store Store
	ttl   time.Duration
}

// NewCandles wraps a Store with JSON candle encoding and a default TTL.
func NewCandles(store Store, ttl time.Duration) *Candles {
	return &Candles{store: store, ttl: ttl}
}

// Key builds the cache key for a symbol/interval/depth combination.
func Key(symbol string, tf domain.Timeframe, limit int) string {
	return fmt.Sprintf("klines:%s:%s:%d", symbol, tf, limit)
}

// Get returns the cached series for the key, if present and decodable.
func (c *Candles) Get(ctx context.Context, key string) ([]domain.Candle, bool) {
	b, ok := c.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var out []domain.Candle
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return out, true
}

// Put stores the series under the key for the default TTL.
func (c *Candles) Put(ctx context.Context, key string, candles []domain.Candle) {
	b, err := json.Marshal(candles)
	if err != nil {
		return
	}
	c.store.Set(ctx, key, b, c.ttl)
}
