// Package metrics exposes Prometheus counters for the HTTP surface and the
// authentication flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the auth counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics owns its registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logins      *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	gate        *prometheus.CounterVec
	revocations prometheus.Counter
	forced      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by outcome and reason.",
		}, []string{"outcome", "reason"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Token refresh attempts by outcome and reason.",
		}, []string{"outcome", "reason"}),
		gate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_gate_decisions_total",
			Help: "Auth gate decisions per request.",
		}, []string{"decision"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_tokens_revoked_total",
			Help: "Tokens added to the revocation store.",
		}),
		forced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_forced_offline_total",
			Help: "Sessions closed by an administrator.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.logins,
		m.refreshes,
		m.gate,
		m.revocations,
		m.forced,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveLogin(outcome string, reason string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string, reason string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) ObserveGate(decision string) {
	if m == nil {
		return
	}
	m.gate.WithLabelValues(decision).Inc()
}

func (m *Metrics) TokenRevoked() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

func (m *Metrics) SessionsForcedOffline(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.forced.Add(float64(n))
}

// Instrument records request count, latency and in-flight requests. The route
// label is the chi pattern so path parameters do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
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

// PoolStats is a point-in-time view of a connection pool.
type PoolStats struct {
	Total int
	Idle  int
	InUse int
}

// RegisterPool exposes pool_connections{pool,state} gauges that read stats
// at scrape time.
func (m *Metrics) RegisterPool(name string, stats func() PoolStats) {
	if m == nil || stats == nil {
		return
	}

	states := map[string]func(PoolStats) int{
		"total":  func(s PoolStats) int { return s.Total },
		"idle":   func(s PoolStats) int { return s.Idle },
		"in_use": func(s PoolStats) int { return s.InUse },
	}
	for state, pick := range states {
		pick := pick
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pool_connections",
			Help:        "Connections held by a backing store pool.",
			ConstLabels: prometheus.Labels{"pool": name, "state": state},
		}, func() float64 {
			return float64(pick(stats()))
		}))
	}
}
