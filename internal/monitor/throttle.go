package monitor

import (
	"context"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"

	"github.com/quantonic/setforge/internal/domain"
)

// Suppression reasons reported by the throttle.
const (
	ReasonDuplicate = "duplicate"
	ReasonCooldown  = "cooldown"
	ReasonBudget    = "budget"
)

// Throttle decides whether an alert may go out.
type Throttle interface {
	Allow(ctx context.Context, s domain.Setup) (bool, string, error)
}

// ThrottleConfig bounds alert volume.
type ThrottleConfig struct {
	DedupTTL         time.Duration
	Cooldown         time.Duration
	MaxAlertsPerHour int
}

// RedisThrottle enforces dedup, per-symbol cooldown and an hourly budget
// against shared Redis state, so several monitor instances throttle as
// one.
type RedisThrottle struct {
	rdb *redis.Client
	cfg ThrottleConfig
	now func() time.Time
}

// NewRedisThrottle connects a throttle to Redis.
func NewRedisThrottle(addr string, db int, cfg ThrottleConfig) *RedisThrottle {
	return newRedisThrottle(redis.NewClient(&redis.Options{Addr: addr, DB: db}), cfg)
}

func newRedisThrottle(rdb *redis.Client, cfg ThrottleConfig) *RedisThrottle {
	return &RedisThrottle{rdb: rdb, cfg: cfg, now: time.Now}
}

// Allow runs the three gates in order. The dedup and cooldown keys are
// claimed via SETNX so concurrent monitors cannot double-send.
func (t *RedisThrottle) Allow(ctx context.Context, s domain.Setup) (bool, string, error) {
	dedupKey := fmt.Sprintf("alert:dedup:%s:%s:%s", s.Symbol, s.Interval, s.Direction)
	ok, err := t.rdb.SetNX(ctx, dedupKey, "1", t.cfg.DedupTTL).Result()
	if err != nil {
		return false, "", fmt.Errorf("throttle dedup: %w", err)
	}
	if !ok {
		return false, ReasonDuplicate, nil
	}

	coolKey := fmt.Sprintf("alert:cooldown:%s", s.Symbol)
	ok, err = t.rdb.SetNX(ctx, coolKey, "1", t.cfg.Cooldown).Result()
	if err != nil {
		return false, "", fmt.Errorf("throttle cooldown: %w", err)
	}
	if !ok {
		return false, ReasonCooldown, nil
	}

	budgetKey := fmt.Sprintf("alert:budget:%s", t.now().UTC().Format("2006010215"))
	n, err := t.rdb.Incr(ctx, budgetKey).Result()
	if err != nil {
		return false, "", fmt.Errorf("throttle budget: %w", err)
	}
	if n == 1 {
		t.rdb.Expire(ctx, budgetKey, time.Hour)
	}
	if t.cfg.MaxAlertsPerHour > 0 && n > int64(t.cfg.MaxAlertsPerHour) {
		return false, ReasonBudget, nil
	}
	return true, "", nil
}

// AllowAll passes everything; used when no Redis is configured.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, domain.Setup) (bool, string, error) {
	return true, "", nil
}
