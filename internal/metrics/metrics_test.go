package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveLogin(OutcomeSuccess, "")
	m.ObserveRefresh(OutcomeFailure, "expired")
	m.ObserveGate("authenticated")
	m.TokenRevoked()
	m.SessionsForcedOffline(3)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Instrument(next))
	assert.Nil(t, m.Registry())
}

func TestAuthCounters(t *testing.T) {
	m := New()
	m.ObserveLogin(OutcomeSuccess, "none")
	m.ObserveLogin(OutcomeFailure, "captcha")
	m.ObserveLogin(OutcomeFailure, "captcha")
	m.SessionsForcedOffline(2)

	body := scrape(t, m)
	assert.Contains(t, body, `auth_login_total{outcome="success",reason="none"} 1`)
	assert.Contains(t, body, `auth_login_total{outcome="failure",reason="captcha"} 2`)
	assert.Contains(t, body, `auth_forced_offline_total 2`)
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	body := scrape(t, m)
	assert.Contains(t, body, `http_requests_total{method="GET",route="/users/{id}",status="418"} 1`)
	assert.NotContains(t, body, "/users/42")
}

func TestRegisterPool(t *testing.T) {
	m := New()
	m.RegisterPool("redis", func() PoolStats { return PoolStats{Total: 5, Idle: 3, InUse: 2} })

	body := scrape(t, m)
	assert.Contains(t, body, `pool_connections{pool="redis",state="idle"} 3`)
	assert.Contains(t, body, `pool_connections{pool="redis",state="in_use"} 2`)
	assert.Contains(t, body, `pool_connections{pool="redis",state="total"} 5`)

	var nilMetrics *Metrics
	nilMetrics.RegisterPool("noop", func() PoolStats { return PoolStats{} })
}
