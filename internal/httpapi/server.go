// Package httpapi serves the ops surface: health, latest setups and
// Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/telemetry"
)

// LatestStore holds the most recent scan output for the /setups view.
type LatestStore struct {
	mu      sync.RWMutex
	setups  []domain.Setup
	updated time.Time
}

// Update replaces the stored scan result.
func (l *LatestStore) Update(setups []domain.Setup) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setups = append([]domain.Setup(nil), setups...)
	l.updated = time.Now().UTC()
}

// Snapshot returns the stored setups and when they were produced.
func (l *LatestStore) Snapshot() ([]domain.Setup, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.Setup(nil), l.setups...), l.updated
}

// HealthProbe reports one dependency's state for /health.
type HealthProbe func(ctx context.Context) (name, status string)

// Server is the ops HTTP server.
type Server struct {
	srv     *http.Server
	router  *mux.Router
	store   *LatestStore
	metrics *telemetry.Metrics
	probes  []HealthProbe
	started time.Time
	log     zerolog.Logger
}

// Options configures listen address and timeouts.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New builds the server and its routes. metrics may be nil, which
// disables the /metrics endpoint.
func New(opts Options, store *LatestStore, metrics *telemetry.Metrics, log zerolog.Logger, probes ...HealthProbe) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if store == nil {
		store = &LatestStore{}
	}

	s := &Server{
		router:  mux.NewRouter(),
		store:   store,
		metrics: metrics,
		probes:  probes,
		started: time.Now(),
		log:     log.With().Str("component", "httpapi").Logger(),
	}

	s.router.Use(s.requestID, s.logging)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/setups", s.handleSetups).Methods(http.MethodGet)
	if metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.srv = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status       string             `json:"status"`
	UptimeSecs   float64            `json:"uptime_seconds"`
	Dependencies map[string]string  `json:"dependencies,omitempty"`
	Counters     map[string]float64 `json:"counters,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	deps := make(map[string]string, len(s.probes))
	status := "ok"
	for _, probe := range s.probes {
		name, st := probe(r.Context())
		deps[name] = st
		if st != "ok" && st != "closed" && st != "disabled" {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       status,
		UptimeSecs:   time.Since(s.started).Seconds(),
		Dependencies: deps,
		Counters:     s.counterSnapshot(),
	})
}

// counterSnapshot sums counter and gauge families across their labels so
// /health carries a quick activity readout without scraping /metrics.
func (s *Server) counterSnapshot() map[string]float64 {
	if s.metrics == nil {
		return nil
	}
	fams, err := s.metrics.Registry.Gather()
	if err != nil {
		s.log.Warn().Err(err).Msg("metric gather failed")
		return nil
	}
	out := make(map[string]float64)
	for _, fam := range fams {
		var total float64
		scalar := false
		for _, m := range fam.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
				scalar = true
			} else if g := m.GetGauge(); g != nil {
				total += g.GetValue()
				scalar = true
			}
		}
		if scalar {
			out[fam.GetName()] = total
		}
	}
	return out
}

type setupsResponse struct {
	UpdatedAt time.Time      `json:"updated_at"`
	Count     int            `json:"count"`
	Setups    []domain.Setup `json:"setups"`
}

func (s *Server) handleSetups(w http.ResponseWriter, r *http.Request) {
	setups, updated := s.store.Snapshot()
	writeJSON(w, http.StatusOK, setupsResponse{
		UpdatedAt: updated,
		Count:     len(setups),
		Setups:    setups,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", w.Header().Get("X-Request-ID")).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}
