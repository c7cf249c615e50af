package telemetry

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, m *Metrics) map[string]*dto.MetricFamily {
	t.Helper()
	fams, err := m.Registry.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(fams))
	for _, f := range fams {
		out[f.GetName()] = f
	}
	return out
}

func TestCountersRecord(t *testing.T) {
	m := New()

	m.SetupsDetected.WithLabelValues("BTCUSDT", "long").Inc()
	m.SetupsDetected.WithLabelValues("BTCUSDT", "long").Inc()
	m.AlertsSuppressed.WithLabelValues("cooldown").Inc()

	fams := gather(t, m)

	setups, ok := fams["setforge_setups_detected_total"]
	require.True(t, ok)
	require.Len(t, setups.GetMetric(), 1)
	assert.Equal(t, 2.0, setups.GetMetric()[0].GetCounter().GetValue())

	suppressed := fams["setforge_alerts_suppressed_total"]
	require.NotNil(t, suppressed)
	assert.Equal(t, 1.0, suppressed.GetMetric()[0].GetCounter().GetValue())
}

func TestRequestTimerRecordsLatencyAndOutcome(t *testing.T) {
	m := New()

	timer := m.StartRequest("kline")
	timer.Done("ok")

	fams := gather(t, m)

	reqs := fams["setforge_provider_requests_total"]
	require.NotNil(t, reqs)
	assert.Equal(t, 1.0, reqs.GetMetric()[0].GetCounter().GetValue())

	lat := fams["setforge_provider_latency_seconds"]
	require.NotNil(t, lat)
	assert.Equal(t, uint64(1), lat.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestRegistriesAreIsolated(t *testing.T) {
	a := New()
	b := New()
	a.WSReconnects.Inc()

	fams := gather(t, b)
	ws, ok := fams["setforge_ws_reconnects_total"]
	if ok {
		assert.Equal(t, 0.0, ws.GetMetric()[0].GetCounter().GetValue())
	}
}
