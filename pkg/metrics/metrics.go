// Package metrics exposes Prometheus metrics for one app instance.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several apps can live in one process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration  *prometheus.HistogramVec
	hookCallbacks  *prometheus.CounterVec
	hookDuration   *prometheus.HistogramVec
	modulesInvoked *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	httpInFlight   prometheus.Gauge
}

// New creates metrics registered on a fresh registry, including Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rapid_stage_duration_seconds",
				Help:    "Duration of lifecycle stages",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage", "outcome"}, // outcome: ok, error
		),
		hookCallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapid_hook_callbacks_total",
				Help: "Hook callbacks invoked by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		hookDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rapid_hook_callback_duration_seconds",
				Help:    "Duration of hook callbacks by event",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event"},
		),
		modulesInvoked: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapid_modules_invoked_total",
				Help: "Artifacts produced by module factories, by kind",
			},
			[]string{"kind"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapid_http_requests_total",
				Help: "HTTP requests by method and status code",
			},
			[]string{"method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rapid_http_request_duration_seconds",
				Help:    "HTTP request latency by method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "rapid_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
}

// Registry returns the underlying registry, or nil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStage records the duration of a lifecycle stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, outcome(err)).Observe(d.Seconds())
}

// ObserveHook records one hook callback.
func (m *Metrics) ObserveHook(event string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.hookCallbacks.WithLabelValues(event, outcome(err)).Inc()
	m.hookDuration.WithLabelValues(event).Observe(d.Seconds())
}

// AddModules counts artifacts attached for a kind.
func (m *Metrics) AddModules(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.modulesInvoked.WithLabelValues(kind).Add(float64(n))
}

// ObserveRequest records a served HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RequestStarted and RequestFinished track in-flight requests.
func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.httpInFlight.Inc()
}

func (m *Metrics) RequestFinished() {
	if m == nil {
		return
	}
	m.httpInFlight.Dec()
}
