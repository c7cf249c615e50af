// Package telemetry exposes Prometheus metrics for the scan, monitor
// and provider layers.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the engine records into. Each process
// builds one instance against its own registry; tests build their own.
type Metrics struct {
	Registry *prometheus.Registry

	ScanDuration     *prometheus.HistogramVec
	SetupsDetected   *prometheus.CounterVec
	ScanErrors       *prometheus.CounterVec
	ActiveScans      prometheus.Gauge
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	WSReconnects     prometheus.Counter
	AlertsSent       *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	JournalErrors    *prometheus.CounterVec
	BacktestEquity   *prometheus.GaugeVec
}

// New builds and registers the full collector set.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "setforge_scan_duration_seconds",
				Help:    "Duration of one full symbol scan",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"timeframe"},
		),
		SetupsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "setforge_setups_detected_total",
				Help: "Setups detected by symbol and direction",
			},
			[]string{"symbol", "direction"},
		),
		ScanErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "setforge_scan_errors_total",
				Help: "Per-symbol scan failures",
			},
			[]string{"symbol"},
		),
		ActiveScans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "setforge_active_scans",
				Help: "Scans currently in flight",
			},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "setforge_provider_requests_total",
				Help: "Exchange REST requests by route and outcome",
			},
			[]string{"route", "status"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "setforge_provider_latency_seconds",
				Help:    "Exchange REST request latency",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "setforge_cache_hits_total",
				Help: "Candle cache hits by route",
			},
			[]string{"route"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "setforge_cache_misses_total",
				Help: "Candle cache misses by route",
			},
			[]string{"route"},
		),
		WSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "setforge_ws_reconnects_total",
				Help: "WebSocket stream reconnects",
			},
		),
		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "setforge_alerts_sent_total",
				Help: "Alerts delivered by channel",
			},
			[]string{"channel"},
		),
		AlertsSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "setforge_alerts_suppressed_total",
				Help: "Alerts dropped by the throttle, by reason",
			},
			[]string{"reason"},
		),
		JournalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "setforge_journal_errors_total",
				Help: "Journal write failures by operation",
			},
			[]string{"op"},
		),
		BacktestEquity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "setforge_backtest_final_equity",
				Help: "Final equity of the most recent backtest run per symbol",
			},
			[]string{"symbol"},
		),
	}

	m.Registry.MustRegister(
		m.ScanDuration,
		m.SetupsDetected,
		m.ScanErrors,
		m.ActiveScans,
		m.ProviderRequests,
		m.ProviderLatency,
		m.CacheHits,
		m.CacheMisses,
		m.WSReconnects,
		m.AlertsSent,
		m.AlertsSuppressed,
		m.JournalErrors,
		m.BacktestEquity,
	)
	return m
}

// RequestTimer times one provider request.
type RequestTimer struct {
	m     *Metrics
	route string
	start time.Time
}

// StartRequest begins timing a provider request on a route.
func (m *Metrics) StartRequest(route string) *RequestTimer {
	return &RequestTimer{m: m, route: route, start: time.Now()}
}

// Done records the latency and outcome.
func (t *RequestTimer) Done(status string) {
	t.m.ProviderLatency.WithLabelValues(t.route).Observe(time.Since(t.start).Seconds())
	t.m.ProviderRequests.WithLabelValues(t.route, status).Inc()
}
