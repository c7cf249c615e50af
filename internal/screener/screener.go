// Package screener fans a symbol universe across a bounded worker pool,
// evaluates the latest closed bar for each, and ranks the hits.
package screener

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/setup"
	"github.com/quantonic/setforge/internal/telemetry"
)

// Source supplies candle history for one symbol. The final candle may
// still be forming; the screener drops it before evaluation.
type Source interface {
	Series(ctx context.Context, symbol string, tf domain.Timeframe, bars int) (*domain.Series, error)
}

// Options bounds the scan.
type Options struct {
	Workers       int
	Top           int
	MinConfidence float64
}

// Screener runs detector evaluations across a symbol universe.
type Screener struct {
	src     Source
	det     *setup.Detector
	opts    Options
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

// New builds a screener. metrics may be nil.
func New(src Source, det *setup.Detector, opts Options, metrics *telemetry.Metrics, log zerolog.Logger) *Screener {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Screener{src: src, det: det, opts: opts, metrics: metrics, log: log.With().Str("component", "screener").Logger()}
}

// Scan evaluates every symbol's latest closed bar on the timeframe and
// returns tradable setups ranked by confidence. Per-symbol failures are
// logged and skipped; the scan only fails when the context does.
func (s *Screener) Scan(ctx context.Context, symbols []string, tf domain.Timeframe, bars int) ([]domain.Setup, error) {
	return s.ScanTop(ctx, symbols, tf, bars, s.opts.Top)
}

// ScanTop is Scan with a per-call result cap. top <= 0 keeps every hit.
func (s *Screener) ScanTop(ctx context.Context, symbols []string, tf domain.Timeframe, bars, top int) ([]domain.Setup, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.ActiveScans.Inc()
		defer s.metrics.ActiveScans.Dec()
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var hits []domain.Setup

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				st, err := s.scanOne(ctx, symbol, tf, bars)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.log.Warn().Err(err).Str("symbol", symbol).Msg("symbol scan failed")
					if s.metrics != nil {
						s.metrics.ScanErrors.WithLabelValues(symbol).Inc()
					}
					continue
				}
				if !st.Tradable(s.opts.MinConfidence) {
					continue
				}
				if s.metrics != nil {
					s.metrics.SetupsDetected.WithLabelValues(symbol, string(st.Direction)).Inc()
				}
				mu.Lock()
				hits = append(hits, st)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, symbol := range symbols {
		select {
		case jobs <- symbol:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Confidence != hits[j].Confidence {
			return hits[i].Confidence > hits[j].Confidence
		}
		return hits[i].Symbol < hits[j].Symbol
	})
	if top > 0 && len(hits) > top {
		hits = hits[:top]
	}

	if s.metrics != nil {
		s.metrics.ScanDuration.WithLabelValues(string(tf)).Observe(time.Since(start).Seconds())
	}
	s.log.Info().
		Int("symbols", len(symbols)).
		Int("hits", len(hits)).
		Dur("elapsed", time.Since(start)).
		Msg("scan complete")
	return hits, nil
}

func (s *Screener) scanOne(ctx context.Context, symbol string, tf domain.Timeframe, bars int) (domain.Setup, error) {
	series, err := s.src.Series(ctx, symbol, tf, bars)
	if err != nil {
		return domain.Setup{}, err
	}
	closed, err := series.DropForming()
	if err != nil {
		return domain.Setup{}, err
	}
	return s.det.Evaluate(closed, closed.Len()-1)
}
