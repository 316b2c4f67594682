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

func TestObserveRebuild(t *testing.T) {
	before := testutil.ToFloat64(RebuildsTotal.WithLabelValues("partial"))
	ObserveRebuild("partial", 12*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(RebuildsTotal.WithLabelValues("partial")))
}

func TestObserveFetch(t *testing.T) {
	before := testutil.ToFloat64(BoundaryFetchesTotal.WithLabelValues("not_found"))
	ObserveFetch("not_found", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(BoundaryFetchesTotal.WithLabelValues("not_found")))
}

func TestObserveCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("memory", "hit"))
	misses := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("memory", "miss"))

	ObserveCacheLookup("memory", true)
	ObserveCacheLookup("memory", false)
	ObserveCacheLookup("memory", false)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("memory", "hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("memory", "miss")))
}

func TestHandler(t *testing.T) {
	ObserveRebuild("ok", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tqgap_rebuilds_total")
}
