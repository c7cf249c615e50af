package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/telemetry"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsProbes(t *testing.T) {
	okProbe := func(context.Context) (string, string) { return "journal", "ok" }
	brkProbe := func(context.Context) (string, string) { return "bybit_breaker", "closed" }
	s := New(Options{}, nil, nil, zerolog.Nop(), okProbe, brkProbe)

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Dependencies["journal"])
	assert.Equal(t, "closed", body.Dependencies["bybit_breaker"])
	assert.GreaterOrEqual(t, body.UptimeSecs, 0.0)
}

func TestHealthDegradesOnFailingProbe(t *testing.T) {
	bad := func(context.Context) (string, string) { return "bybit_breaker", "open" }
	s := New(Options{}, nil, nil, zerolog.Nop(), bad)

	var body healthResponse
	rec := get(t, s, "/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}

func TestHealthIncludesCounterSnapshot(t *testing.T) {
	m := telemetry.New()
	m.SetupsDetected.WithLabelValues("BTCUSDT", "long").Inc()
	m.SetupsDetected.WithLabelValues("ETHUSDT", "short").Inc()
	s := New(Options{}, nil, m, zerolog.Nop())

	var body healthResponse
	rec := get(t, s, "/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2.0, body.Counters["setforge_setups_detected_total"])
	// Histogram families stay out of the quick readout.
	assert.NotContains(t, body.Counters, "setforge_scan_duration_seconds")
}

func TestSetupsServesLatestSnapshot(t *testing.T) {
	store := &LatestStore{}
	s := New(Options{}, store, nil, zerolog.Nop())

	rec := get(t, s, "/setups")
	var empty setupsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Zero(t, empty.Count)

	store.Update([]domain.Setup{{Symbol: "BTCUSDT", Direction: domain.SideLong, Confidence: 75}})

	rec = get(t, s, "/setups")
	var body setupsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "BTCUSDT", body.Setups[0].Symbol)
	assert.False(t, body.UpdatedAt.IsZero())
}

func TestMetricsEndpointExposesRegistry(t *testing.T) {
	m := telemetry.New()
	m.SetupsDetected.WithLabelValues("BTCUSDT", "long").Inc()
	s := New(Options{}, nil, m, zerolog.Nop())

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "setforge_setups_detected_total")
}

func TestRequestIDHeader(t *testing.T) {
	s := New(Options{}, nil, nil, zerolog.Nop())

	rec := get(t, s, "/health")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}

func TestLatestStoreCopiesSlices(t *testing.T) {
	store := &LatestStore{}
	in := []domain.Setup{{Symbol: "BTCUSDT"}}
	store.Update(in)
	in[0].Symbol = "MUTATED"

	got, _ := store.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
}
