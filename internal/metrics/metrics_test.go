package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))

	RecordCacheLookup("hit")
	RecordCacheLookup("hit")

	assert.Equal(t, before+2, testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")))
}

func TestRecordMutation(t *testing.T) {
	okBefore := testutil.ToFloat64(mutationsTotal.WithLabelValues("brands.delete", "success"))
	errBefore := testutil.ToFloat64(mutationsTotal.WithLabelValues("brands.delete", "error"))

	RecordMutation("brands.delete", true)
	RecordMutation("brands.delete", false)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(mutationsTotal.WithLabelValues("brands.delete", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(mutationsTotal.WithLabelValues("brands.delete", "error")))
}

func TestGauges(t *testing.T) {
	SetCacheEntries(7)
	SetSessionsActive(3)

	assert.Equal(t, float64(7), testutil.ToFloat64(cacheEntries))
	assert.Equal(t, float64(3), testutil.ToFloat64(sessionsActive))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordUpstreamRequest("GET", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "backoffice_upstream_requests_total"))
}
