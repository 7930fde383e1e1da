package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the instrumentation the API server emits. Collectors are
// registered against the given registerer so tests can use a private
// registry instead of the process-global one.
type Metrics struct {
	requestDuration   *prometheus.HistogramVec
	guardrailTriggers *prometheus.CounterVec
	snapshotPublishes *prometheus.CounterVec
	diffOps           prometheus.Histogram
}

// NewMetrics builds and registers the API collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "raytchel_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		guardrailTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raytchel_guardrail_triggers_total",
				Help: "Guardrail decisions that triggered, by reason.",
			},
			[]string{"reason"},
		),
		snapshotPublishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raytchel_snapshot_publishes_total",
				Help: "Snapshot publish operations, including rollbacks.",
			},
			[]string{"kind"},
		),
		diffOps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "raytchel_sync_diff_ops",
				Help:    "Operations per diff-sync response.",
				Buckets: []float64{0, 1, 5, 25, 100, 500, 2000},
			},
		),
	}
	reg.MustRegister(m.requestDuration, m.guardrailTriggers, m.snapshotPublishes, m.diffOps)
	return m
}

// instrument wraps a handler to record request latency per chi route.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
