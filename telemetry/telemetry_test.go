package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maxpert/auditsource/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetTelemetry(t *testing.T) {
	original := cfg.Config
	t.Cleanup(func() {
		cfg.Config = original
		registry = nil
		EventsReadTotal = NoopStat{}
		CyclesTotal = noopCounterVec{}
		SinkPublishDurationSeconds = noopHistogramVec{}
	})
}

func TestNoopUntilInitialized(t *testing.T) {
	resetTelemetry(t)
	cfg.Config = cfg.Default()
	cfg.Config.Prometheus.Enabled = false

	InitializeTelemetry()
	assert.Nil(t, GetMetricsHandler())

	// noop metrics accept every call
	EventsReadTotal.Add(3)
	CyclesTotal.With("ready").Inc()
	CycleDurationSeconds.Observe(0.5)
	CommittedCursor.Set(42)
	SinkPublishDurationSeconds.With("stdout").Observe(0.01)
	assert.IsType(t, NoopStat{}, NewCounter("unused_total", "unused"))
}

func TestInitializeTelemetry_ServesMetrics(t *testing.T) {
	resetTelemetry(t)
	cfg.Config = cfg.Default()
	cfg.Config.Name = "audit-test"
	cfg.Config.Prometheus.Enabled = true

	InitializeTelemetry()
	handler := GetMetricsHandler()
	require.NotNil(t, handler)

	EventsReadTotal.Add(3)
	CyclesTotal.With("ready").Inc()
	SinkPublishDurationSeconds.With("stdout").Observe(0.01)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `auditsource_events_read_total{source="audit-test"} 3`)
	assert.Contains(t, string(body), `auditsource_cycles_total{source="audit-test",status="ready"} 1`)
	assert.Contains(t, string(body), `auditsource_sink_publish_duration_seconds_count{sink="stdout",source="audit-test"} 1`)
}
