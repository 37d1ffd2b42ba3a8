package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth outcomes recorded by the auth middleware.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeMissing       = "missing_credentials"
	OutcomeInvalid       = "invalid_token"
	OutcomeExpired       = "expired_or_unknown"
	OutcomeOrgRevoked    = "org_access_revoked"
	OutcomeStoreError    = "store_error"
)

// Metrics holds the process collectors on a private registry so several
// servers (and tests) can coexist in one process.
type Metrics struct {
	registry        *prometheus.Registry
	inFlight        prometheus.Gauge
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	authOutcomes    *prometheus.CounterVec
	sessionsRevoked prometheus.Counter
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_outcomes_total",
			Help: "Authentication decisions by outcome.",
		}, []string{"outcome"}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "org_sessions_revoked_total",
			Help: "Sessions purged by organization-wide revocation.",
		}),
	}

	m.registry.MustRegister(
		m.inFlight, m.requests, m.duration, m.authOutcomes, m.sessionsRevoked,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AuthOutcome counts one authentication decision. Safe on a nil receiver.
func (m *Metrics) AuthOutcome(outcome string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(outcome).Inc()
}

// SessionsRevoked adds n purged sessions. Safe on a nil receiver.
func (m *Metrics) SessionsRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsRevoked.Add(float64(n))
}

// RegisterDB exports the pool statistics of db under db_name. Safe on a nil
// receiver.
func (m *Metrics) RegisterDB(name string, db *sql.DB) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Instrument records RPS, latency and in-flight requests. Requests are
// labelled with the chi route pattern once routing has resolved it.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		m.duration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
