// Package metrics exposes costlens Prometheus metrics on a dedicated
// registry, served by the HTTP API at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis outcome labels.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
)

// Fetch and cache result labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultShared  = "shared"
)

// Registry holds every costlens metric plus Go runtime and process
// collectors.
//
//nolint:gochecknoglobals // process-wide metric registry
var Registry = prometheus.NewRegistry()

//nolint:gochecknoglobals // metric handles registered once at init
var (
	factory = promauto.With(Registry)

	AnalysesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costlens_analyses_total",
			Help: "Entity analyses run, by outcome",
		},
		[]string{"status"},
	)

	AnalysisDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "costlens_analysis_duration_seconds",
			Help:    "Time spent analyzing one entity",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	RowsDroppedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costlens_rows_dropped_total",
			Help: "Input rows dropped or merged during normalization, by reason",
		},
		[]string{"reason"},
	)

	SourceFetchTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costlens_source_fetch_total",
			Help: "Cost data source fetches, by source and result",
		},
		[]string{"source", "result"},
	)

	CacheRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costlens_cache_requests_total",
			Help: "Data source cache lookups, by result",
		},
		[]string{"result"},
	)
)

func init() { //nolint:gochecknoinits // registry must carry runtime collectors before first scrape
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveAnalysis records one analysis outcome and its duration.
func ObserveAnalysis(status string, d time.Duration) {
	AnalysesTotal.WithLabelValues(status).Inc()
	AnalysisDuration.Observe(d.Seconds())
}

// RecordRowsDropped adds n dropped rows for reason. Zero is ignored.
func RecordRowsDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	RowsDroppedTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordSourceFetch counts one fetch from a data source.
func RecordSourceFetch(source string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	SourceFetchTotal.WithLabelValues(source, result).Inc()
}

// RecordCache counts one cache lookup.
func RecordCache(result string) {
	CacheRequestsTotal.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
