package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-auth/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveFlow(t *testing.T) {
	m := metrics.New()

	m.ObserveFlow("refresh", "ok", time.Millisecond)
	m.ObserveFlow("refresh", "reused", time.Millisecond)
	m.ObserveFlow("refresh", "reused", time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.FlowTotal().WithLabelValues("refresh", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.FlowTotal().WithLabelValues("refresh", "reused")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.TokenReuse()))
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.ObservePurge("sessions", 3)
	m.ObserveRequest("/auth/login", http.StatusOK)
	m.ObserveRateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `session_auth_purged_rows_total{kind="sessions"} 3`)
	require.Contains(t, body, `session_auth_http_requests_total{code="200",route="/auth/login"} 1`)
	require.Contains(t, body, "session_auth_rate_limited_total 1")
}
