// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors used across packages. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	logins           *prometheus.CounterVec
	auditDropped     prometheus.Counter
	auditFailed      prometheus.Counter
	auditWritten     prometheus.Counter
	wsConnections    prometheus.Gauge
	notificationsOut *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sajilotantra_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sajilotantra_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sajilotantra_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		auditDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "sajilotantra_audit_dropped_total",
			Help: "Activity log entries dropped because the queue was full.",
		}),
		auditFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "sajilotantra_audit_failed_total",
			Help: "Activity log entries that failed to persist.",
		}),
		auditWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "sajilotantra_audit_written_total",
			Help: "Activity log entries persisted.",
		}),
		wsConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "sajilotantra_websocket_connections",
			Help: "Currently connected websocket clients.",
		}),
		notificationsOut: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sajilotantra_realtime_events_total",
			Help: "Real-time events by delivery result.",
		}, []string{"result"}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sajilotantra_maintenance_runs_total",
			Help: "Maintenance job runs by job and result.",
		}, []string{"job", "result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// LoginAttempt counts a login outcome such as "success", "bad_password" or "locked".
func (m *Metrics) LoginAttempt(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

// AuditDropped counts an entry dropped on a full queue.
func (m *Metrics) AuditDropped() {
	if m != nil {
		m.auditDropped.Inc()
	}
}

// AuditFailed counts an entry the store rejected.
func (m *Metrics) AuditFailed() {
	if m != nil {
		m.auditFailed.Inc()
	}
}

// AuditWritten counts a persisted entry.
func (m *Metrics) AuditWritten() {
	if m != nil {
		m.auditWritten.Inc()
	}
}

// ClientConnected adjusts the websocket gauge.
func (m *Metrics) ClientConnected(delta int) {
	if m != nil {
		m.wsConnections.Add(float64(delta))
	}
}

// EventPublished counts a real-time event by result ("delivered", "no_recipient", "dropped").
func (m *Metrics) EventPublished(result string) {
	if m != nil {
		m.notificationsOut.WithLabelValues(result).Inc()
	}
}

// JobRun counts a maintenance job run.
func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}
