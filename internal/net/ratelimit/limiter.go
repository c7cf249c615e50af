// Package ratelimit paces outbound exchange requests. Bybit budgets
// per endpoint group, so each route keeps its own token bucket; all
// buckets share one configured rate.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter provides per-route token-bucket rate limiting.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	rps     float64
	burst   int
}

// NewLimiter creates a limiter with the given steady rate and burst.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rps,
		burst:   burst,
	}
}

func (l *Limiter) bucket(route string) *rate.Limiter {
	l.mu.RLock()
	b, ok := l.buckets[route]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[route]; ok {
		return b
	}
	b = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.buckets[route] = b
	return b
}

// Allow reports whether a request on the route may proceed now.
func (l *Limiter) Allow(route string) bool {
	return l.bucket(route).Allow()
}

// Wait blocks until the route has a token or the context is done.
func (l *Limiter) Wait(ctx context.Context, route string) error {
	return l.bucket(route).Wait(ctx)
}

// SetRPS retargets the steady rate on every existing bucket. Used when
// the exchange signals throttling.
func (l *Limiter) SetRPS(rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rps = rps
	for _, b := range l.buckets {
		b.SetLimit(rate.Limit(rps))
	}
}

// RouteStats is a point-in-time view of one route's bucket.
type RouteStats struct {
	Route  string        `json:"route"`
	RPS    float64       `json:"rps"`
	Burst  int           `json:"burst"`
	Tokens float64       `json:"tokens"`
	Delay  time.Duration `json:"delay"`
}

// Throttled reports whether the next request would have to wait.
func (s RouteStats) Throttled() bool { return s.Delay > 0 }

// Stats snapshots every route bucket.
func (l *Limiter) Stats() map[string]RouteStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]RouteStats, len(l.buckets))
	for route, b := range l.buckets {
		r := b.Reserve()
		delay := r.Delay()
		r.Cancel()
		out[route] = RouteStats{
			Route:  route,
			RPS:    float64(b.Limit()),
			Burst:  b.Burst(),
			Tokens: b.Tokens(),
			Delay:  delay,
		}
	}
	return out
}
