// Package breaker shields the pipeline from a degraded exchange. After
// repeated failures the breaker opens and calls fail fast until a probe
// succeeds.
package breaker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Settings tunes when the breaker trips and how long it stays open.
type Settings struct {
	MinRequests  uint32
	FailureRatio float64
	OpenFor      time.Duration
}

// DefaultSettings trips after 60% failures over at least 5 requests and
// probes again after 30 seconds.
func DefaultSettings() Settings {
	return Settings{MinRequests: 5, FailureRatio: 0.6, OpenFor: 30 * time.Second}
}

// Breaker wraps a single upstream with a circuit breaker.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New builds a breaker named after its upstream. State transitions are
// logged so operators can see flapping.
func New(name string, s Settings, log zerolog.Logger) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &Breaker{cb: cb}
}

// Do runs fn through the breaker. When open it returns
// gobreaker.ErrOpenState without invoking fn.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State returns the current breaker state as a string for health output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
