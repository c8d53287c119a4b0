package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmill/rotor/internal/application"
	"github.com/marketmill/rotor/internal/domain/portfolio"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(":0", nil, zerolog.Nop())

	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestReport_BeforeFirstCycle(t *testing.T) {
	s := NewServer(":0", nil, zerolog.Nop())
	rec := get(t, s, "/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishAndRead(t *testing.T) {
	s := NewServer(":0", nil, zerolog.Nop())

	p, err := portfolio.New(10000)
	require.NoError(t, err)
	require.True(t, p.AddPosition("NVDA", 100, 50, 0.8).OK())

	s.Publish(application.Report{CycleID: "cycle-1", Snapshot: p.Snapshot()})

	rec := get(t, s, "/portfolio")
	assert.Equal(t, http.StatusOK, rec.Code)
	var snap portfolio.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 10000.0, snap.TotalValue)
	assert.Equal(t, 1, snap.NumPositions)

	rec = get(t, s, "/report")
	assert.Equal(t, http.StatusOK, rec.Code)
	var report application.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "cycle-1", report.CycleID)
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "rotor_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	s := NewServer(":0", registry, zerolog.Nop())
	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rotor_test_total 1")
}

func TestMetricsDisabledWithoutRegistry(t *testing.T) {
	s := NewServer(":0", nil, zerolog.Nop())
	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
