// Package cache keeps recently fetched candle series so repeated scans
// inside one TTL window do not hit the exchange again. Redis is used
// when an address is configured; otherwise an in-process map serves the
// same interface.
package cache

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Store is a byte-level TTL cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

type memory struct {
	mu sync.Mutex
	m  map[string]entry
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory returns an in-process store.
func NewMemory() Store { return &memory{m: make(map[string]entry)} }

func (c *memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		delete(c.m, key)
		return nil, false
	}
	return e.b, true
}

func (c *memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

type redisStore struct{ r *redis.Client }

// NewRedis returns a store backed by a Redis instance. Lookups run under
// a short timeout so a slow Redis degrades to a miss, not a stall.
func NewRedis(addr string, db int) Store {
	return &redisStore{r: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_ = r.r.Set(ctx, key, val, ttl).Err()
}

// NewAuto picks Redis when an address is configured, memory otherwise.
func NewAuto(addr string, db int) Store {
	if addr != "" {
		return NewRedis(addr, db)
	}
	return NewMemory()
}
