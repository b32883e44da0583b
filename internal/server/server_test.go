package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/identity"
	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/source"
)

const shortCSV = "Date,Application,Cost\n2024-01-01,App,100\n2024-01-02,App,100\n2024-01-03,App,300\n"

type stubSource struct {
	table ingest.RawTable
	err   error
	got   source.Query
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(_ context.Context, q source.Query) (ingest.RawTable, error) {
	s.got = q
	if s.err != nil {
		return ingest.RawTable{}, &source.Error{Source: "stub", Err: s.err}
	}
	return s.table, nil
}

type stubRefresher struct{ calls int }

func (r *stubRefresher) Refresh(context.Context) error {
	r.calls++
	return nil
}

func newTestServer(opts Options) *httptest.Server {
	if opts.Pipeline.HorizonDays == 0 {
		opts.Pipeline = engine.DefaultPipeline()
	}
	if opts.NormalizeOptions.Aliases == nil {
		opts.NormalizeOptions = ingest.DefaultOptions()
	}
	return httptest.NewServer(New(opts, zerolog.Nop()).Handler())
}

func do(t *testing.T, method, url, contentType, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(Options{})
	defer srv.Close()

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	// Produce at least one analysis so the counter has a sample.
	do(t, http.MethodPost, srv.URL+"/api/v1/analyze?entity=App", "text/csv", shortCSV)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/metrics", nil)
	require.NoError(t, err)
	mresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
	var sb strings.Builder
	_, _ = io.Copy(&sb, mresp.Body)
	assert.Contains(t, sb.String(), "costlens_analyses_total")
	assert.Contains(t, sb.String(), "go_goroutines")
}

func TestAnalyzeCSV(t *testing.T) {
	srv := newTestServer(Options{})
	defer srv.Close()

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/analyze?entity=App", "text/csv; charset=utf-8", shortCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "App", body["entity"])
	eff := body["efficiency"].(map[string]any)
	assert.InDelta(t, 100.0, eff["index_value"], 1e-9)
	assert.InDelta(t, 0.0, eff["delta"], 1e-9)
	assert.Equal(t, "stable", body["advice"])
}

func TestAnalyzeJSONDefaultsToTopEntity(t *testing.T) {
	srv := newTestServer(Options{})
	defer srv.Close()

	payload := `[{"date":"2024-01-01","application":"Small","cost":1},{"date":"2024-01-01","application":"Big","cost":50}]`
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/analyze", "application/json", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Big", body["entity"])
}

func TestAnalyzeNoDataEntity(t *testing.T) {
	srv := newTestServer(Options{})
	defer srv.Close()

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/analyze?entity=Ghost", "text/csv", shortCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["no_data"])
	eff := body["efficiency"].(map[string]any)
	assert.Nil(t, eff["index_value"])
}

func TestAnalyzeErrors(t *testing.T) {
	srv := newTestServer(Options{})
	defer srv.Close()

	tests := []struct {
		name        string
		query       string
		contentType string
		body        string
		status      int
	}{
		{"schema", "", "text/csv", "Date,Cost\n2024-01-01,1\n", http.StatusUnprocessableEntity},
		{"bad_horizon", "?horizon=abc", "text/csv", shortCSV, http.StatusBadRequest},
		{"zero_horizon", "?horizon=0", "text/csv", shortCSV, http.StatusBadRequest},
		{"huge_horizon", "?horizon=9223372036854775807", "text/csv", shortCSV, http.StatusBadRequest},
		{"horizon_above_cap", "?horizon=3651", "text/csv", shortCSV, http.StatusBadRequest},
		{"negative_threshold", "?threshold=-1", "text/csv", shortCSV, http.StatusBadRequest},
		{"unknown_model", "?model=prophet", "text/csv", shortCSV, http.StatusBadRequest},
		{"content_type", "", "application/octet-stream", shortCSV, http.StatusBadRequest},
		{"malformed_json", "", "application/json", "{not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/analyze"+tt.query, tt.contentType, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}

	t.Run("schema_lists_missing_columns", func(t *testing.T) {
		_, body := do(t, http.MethodPost, srv.URL+"/api/v1/analyze", "text/csv", "Date,Cost\n2024-01-01,1\n")
		assert.Equal(t, []any{"entity"}, body["missing"])
	})
}

func TestAnalyzeHoltModel(t *testing.T) {
	srv := newTestServer(Options{})
	defer srv.Close()

	var sb strings.Builder
	sb.WriteString("Date,Application,Cost\n")
	for i := 1; i <= 9; i++ {
		sb.WriteString("2024-01-0" + string(rune('0'+i)) + ",App,100\n")
	}
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/analyze?model=holt&horizon=7", "text/csv", sb.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fc := body["forecast"].(map[string]any)
	assert.Equal(t, "holt", fc["model"])
	assert.InDelta(t, 7.0, fc["horizon_days"], 1e-9)
	assert.InDelta(t, 100.0, fc["horizon_mean"], 1e-3)
}

func TestSummary(t *testing.T) {
	src := &stubSource{table: ingest.RawTable{
		Columns: []string{"UsageDate", "ResourceGroupName", "PreTaxCost"},
		Rows: [][]string{
			{"20240101", "rg-a", "10"},
			{"20240102", "rg-a", "20"},
			{"20240102", "rg-b", "50"},
			{"20240105", "rg-c", "5"},
			{"bogus", "rg-c", "5"},
		},
	}}
	srv := newTestServer(Options{Source: src, TopN: 2})
	defer srv.Close()

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/summary?from=2024-01-01&to=2024-01-03&scope=sub-1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sub-1", src.got.Scope)
	assert.Equal(t, 2024, src.got.From.Year())

	assert.Equal(t, "stub", body["source"])
	assert.InDelta(t, 80.0, body["total_cost"], 1e-9)
	assert.InDelta(t, 2.0, body["entities"], 1e-9)
	ranking := body["ranking"].([]any)
	require.Len(t, ranking, 2)
	assert.Equal(t, "rg-b", ranking[0].(map[string]any)["entity"])
	assert.NotEmpty(t, body["warnings"], "the bogus row is reported")

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/summary?top=1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["ranking"].([]any), 1)
}

func TestSummaryErrors(t *testing.T) {
	t.Run("source_down", func(t *testing.T) {
		srv := newTestServer(Options{Source: &stubSource{err: errors.New("timeout")}})
		defer srv.Close()
		resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/summary", "", "")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("no_source", func(t *testing.T) {
		srv := newTestServer(Options{})
		defer srv.Close()
		resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/summary", "", "")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("bad_params", func(t *testing.T) {
		srv := newTestServer(Options{Source: &stubSource{}})
		defer srv.Close()
		for _, q := range []string{"from=yesterday", "from=2024-02-01&to=2024-01-01", "top=-3"} {
			resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/summary?"+q, "", "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		}
	})

	t.Run("schema", func(t *testing.T) {
		srv := newTestServer(Options{Source: &stubSource{table: ingest.RawTable{Columns: []string{"x"}}}})
		defer srv.Close()
		resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/summary", "", "")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestCacheRefresh(t *testing.T) {
	ref := &stubRefresher{}
	srv := newTestServer(Options{Cache: ref})
	defer srv.Close()

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/cache/refresh", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["refreshed"])
	assert.Equal(t, 1, ref.calls)

	none := newTestServer(Options{})
	defer none.Close()
	_, body = do(t, http.MethodPost, none.URL+"/api/v1/cache/refresh", "", "")
	assert.Equal(t, false, body["refreshed"])
}

func TestAuthentication(t *testing.T) {
	provider := identity.NewStatic("ops", "ops@example.com", "s3cret")
	srv := newTestServer(Options{Identity: provider, RequireAuth: true})
	defer srv.Close()

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/analyze", "text/csv", shortCSV)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/analyze", "text/csv", shortCSV, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/analyze", "text/csv", shortCSV, "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is public")

	open := newTestServer(Options{Identity: provider})
	defer open.Close()
	resp, _ = do(t, http.MethodPost, open.URL+"/api/v1/analyze", "text/csv", shortCSV)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "optional auth lets anonymous callers through")
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(r))
	r.Header.Set("Authorization", "bearer abc ")
	assert.Equal(t, "abc", bearerToken(r))
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, bearerToken(r))
}
