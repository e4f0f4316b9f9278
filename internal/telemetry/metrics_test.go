package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.CacheLookup("topics", true)
		m.CacheEvicted()
		m.CacheInvalidated()
		m.SearchCompleted("topics", time.Millisecond, 0)
		m.SyncOutcome("ok")
		m.SyncCompleted(time.Second)
		m.BatchSubmitted("topics", 10, nil)
		m.LoopTick(time.Minute, 3)
		m.HealthChecked(true)
	})
}

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CacheLookup("topics", true)
	m.CacheLookup("topics", false)
	m.CacheLookup("topics", false)
	m.BatchSubmitted("categories", 4, nil)
	m.BatchSubmitted("categories", 6, errors.New("rejected"))
	m.SearchCompleted("topics", 2*time.Millisecond, 0)
	m.LoopTick(5*time.Minute, 120)
	m.HealthChecked(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("topics", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("topics", "miss")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.DocumentsSubmitted.WithLabelValues("categories")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchFailures.WithLabelValues("categories")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ZeroResultQueries.WithLabelValues("topics")))
	assert.Equal(t, 300.0, testutil.ToFloat64(m.AdaptiveInterval))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.ChangedRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthChecks.WithLabelValues("unhealthy")))
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SyncOutcome("ok")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `lmssearch_sync_cycles_total{result="ok"} 1`)
}
