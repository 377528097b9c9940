package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/abc", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/posts/{id}", "GET", "404")))
}

func TestHelpersAndHandler(t *testing.T) {
	m := New()
	m.LoginAttempt("success")
	m.AuditDropped()
	m.ClientConnected(2)
	m.ClientConnected(-1)
	m.JobRun("purge", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("purge", "error")))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "sajilotantra_login_attempts_total")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LoginAttempt("x")
		m.AuditFailed()
		m.EventPublished("delivered")
		m.JobRun("x", nil)
	})
}
