package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRowsDropped(t *testing.T) {
	before := testutil.ToFloat64(RowsDroppedTotal.WithLabelValues("bad_cost"))

	RecordRowsDropped("bad_cost", 3)
	RecordRowsDropped("bad_cost", 0)

	assert.InDelta(t, before+3, testutil.ToFloat64(RowsDroppedTotal.WithLabelValues("bad_cost")), 1e-9)
}

func TestRecordSourceFetch(t *testing.T) {
	okBefore := testutil.ToFloat64(SourceFetchTotal.WithLabelValues("file", ResultSuccess))
	errBefore := testutil.ToFloat64(SourceFetchTotal.WithLabelValues("file", ResultError))

	RecordSourceFetch("file", nil)
	RecordSourceFetch("file", errors.New("boom"))

	assert.InDelta(t, okBefore+1, testutil.ToFloat64(SourceFetchTotal.WithLabelValues("file", ResultSuccess)), 1e-9)
	assert.InDelta(t, errBefore+1, testutil.ToFloat64(SourceFetchTotal.WithLabelValues("file", ResultError)), 1e-9)
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveAnalysis(StatusOK, 5*time.Millisecond)
	RecordCache(ResultHit)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "costlens_analyses_total")
	assert.Contains(t, string(body), "costlens_analysis_duration_seconds")
	assert.Contains(t, string(body), "costlens_cache_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}
