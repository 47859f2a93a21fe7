package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/bills", 200, time.Millisecond)
		m.ObserveBackend("list_bills", "ok", time.Millisecond)
		m.PaymentSubmitted("ok")
		m.SetBrowserSessions(3)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveHTTP("GET", "/bills/{id}", 200, 10*time.Millisecond)
	m.ObserveHTTP("GET", "/bills/{id}", 200, 20*time.Millisecond)
	m.ObserveBackend("delete_payment", "404", time.Millisecond)
	m.PaymentSubmitted("ok")
	m.SetBrowserSessions(2)

	assert.InDelta(t, 2, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/bills/{id}", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.backendRequests.WithLabelValues("delete_payment", "404")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.payments.WithLabelValues("ok")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.activeSessions), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.PaymentSubmitted("failed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `billpay_payments_submitted_total{outcome="failed"} 1`)
}
