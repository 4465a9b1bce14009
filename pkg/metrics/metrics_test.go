package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStage("database", time.Second, nil)
	m.ObserveHook("beforeStart", time.Millisecond, errors.New("x"))
	m.AddModules("model", 3)
	m.ObserveRequest(http.MethodGet, 200, time.Millisecond)
	m.RequestStarted()
	m.RequestFinished()
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecording(t *testing.T) {
	m := New()

	m.ObserveHook("beforeStart", time.Millisecond, nil)
	m.ObserveHook("beforeStart", time.Millisecond, errors.New("boom"))
	m.AddModules("model", 2)
	m.AddModules("model", 1)
	m.ObserveRequest(http.MethodGet, 404, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.hookCallbacks.WithLabelValues("beforeStart", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hookCallbacks.WithLabelValues("beforeStart", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.modulesInvoked.WithLabelValues("model")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "404")))

	m.RequestStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
	m.RequestFinished()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.AddModules("hook", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.modulesInvoked.WithLabelValues("hook")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.modulesInvoked.WithLabelValues("hook")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveStage("database", 10*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rapid_stage_duration_seconds_count{outcome="ok",stage="database"} 1`)
}
