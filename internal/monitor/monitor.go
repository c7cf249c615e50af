// Package monitor runs the detector continuously across several
// timeframes and pushes throttled alerts to the notifier. Higher
// timeframes weigh heavier: a 1d signal alerts at lower raw confidence
// than a 5m one.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/notify"
	"github.com/quantonic/setforge/internal/telemetry"
)

// Scanner produces ranked setups for one timeframe pass.
type Scanner interface {
	Scan(ctx context.Context, symbols []string, tf domain.Timeframe, bars int) ([]domain.Setup, error)
}

// Journal persists emitted signals. Best effort; failures are logged,
// never fatal.
type Journal interface {
	InsertSignal(ctx context.Context, s domain.Setup) error
}

// Options tunes the monitoring loop.
type Options struct {
	Symbols        []string
	Timeframes     []domain.Timeframe
	LookbackBars   int
	AlertThreshold float64
	Poll           time.Duration
	// Weights overrides the built-in timeframe weights where present.
	Weights map[domain.Timeframe]float64
}

// Monitor drives the scan → weight → throttle → notify pipeline.
type Monitor struct {
	scanner  Scanner
	throttle Throttle
	notifier notify.Notifier
	journal  Journal
	opts     Options
	metrics  *telemetry.Metrics
	log      zerolog.Logger
}

// New wires a monitor. journal and metrics may be nil; a nil throttle
// passes everything.
func New(scanner Scanner, throttle Throttle, notifier notify.Notifier, journal Journal, opts Options, metrics *telemetry.Metrics, log zerolog.Logger) *Monitor {
	if throttle == nil {
		throttle = AllowAll{}
	}
	if opts.Poll <= 0 {
		opts.Poll = 5 * time.Minute
	}
	return &Monitor{
		scanner:  scanner,
		throttle: throttle,
		notifier: notifier,
		journal:  journal,
		opts:     opts,
		metrics:  metrics,
		log:      log.With().Str("component", "monitor").Logger(),
	}
}

// Run ticks immediately, then on every poll interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info().
		Strs("symbols", m.opts.Symbols).
		Int("timeframes", len(m.opts.Timeframes)).
		Dur("poll", m.opts.Poll).
		Msg("monitor started")

	ticker := time.NewTicker(m.opts.Poll)
	defer ticker.Stop()

	for {
		m.Tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one full pass over every timeframe.
func (m *Monitor) Tick(ctx context.Context) {
	for _, tf := range m.opts.Timeframes {
		if ctx.Err() != nil {
			return
		}
		m.TickTimeframe(ctx, tf)
	}
}

// TickTimeframe runs one pass over a single timeframe. The websocket
// fast path uses it to react to a candle close without waiting for the
// poll ticker.
func (m *Monitor) TickTimeframe(ctx context.Context, tf domain.Timeframe) {
	setups, err := m.scanner.Scan(ctx, m.opts.Symbols, tf, m.opts.LookbackBars)
	if err != nil {
		m.log.Error().Err(err).Str("timeframe", string(tf)).Msg("scan pass failed")
		return
	}
	for _, st := range setups {
		m.consider(ctx, st)
	}
}

func (m *Monitor) weight(tf domain.Timeframe) float64 {
	if w, ok := m.opts.Weights[tf]; ok {
		return w
	}
	return tf.Weight()
}

func (m *Monitor) consider(ctx context.Context, st domain.Setup) {
	score := st.Confidence * m.weight(st.Interval)
	if score > 100 {
		score = 100
	}
	if score < m.opts.AlertThreshold {
		return
	}

	allowed, reason, err := m.throttle.Allow(ctx, st)
	if err != nil {
		// A broken throttle must not silence alerts.
		m.log.Warn().Err(err).Msg("throttle unavailable, sending anyway")
		allowed = true
	}
	if !allowed {
		m.log.Debug().
			Str("symbol", st.Symbol).
			Str("reason", reason).
			Msg("alert suppressed")
		if m.metrics != nil {
			m.metrics.AlertsSuppressed.WithLabelValues(reason).Inc()
		}
		return
	}

	alert := notify.Alert{Setup: st, WeightedScore: score}
	if err := m.notifier.Send(ctx, alert); err != nil {
		m.log.Error().Err(err).Str("symbol", st.Symbol).Msg("alert delivery failed")
	} else if m.metrics != nil {
		m.metrics.AlertsSent.WithLabelValues(m.notifier.Name()).Inc()
	}

	if m.journal != nil {
		if err := m.journal.InsertSignal(ctx, st); err != nil {
			m.log.Warn().Err(err).Str("symbol", st.Symbol).Msg("journal write failed")
			if m.metrics != nil {
				m.metrics.JournalErrors.WithLabelValues("insert_signal").Inc()
			}
		}
	}
}
