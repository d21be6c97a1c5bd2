package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch metrics.
var (
	PagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_ingest_pages_total",
		Help: "Pages fetched by dataset",
	}, []string{"dataset"})

	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_ingest_records_total",
		Help: "Records extracted by dataset",
	}, []string{"dataset"})
)

// HTTP metrics.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_ingest_requests_total",
		Help: "HTTP requests by status code (\"error\" for transport failures)",
	}, []string{"status"})

	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_ingest_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	})

	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ingest_retries_total",
		Help: "Retry attempts after transient failures",
	})

	RetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ingest_retry_exhausted_total",
		Help: "Requests that failed after exhausting all attempts",
	})

	RateLimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_ingest_ratelimit_wait_seconds",
		Help:    "Time spent waiting on the request rate limiter",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
	})
)

// Persistence metrics.
var (
	FlushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_ingest_flushes_total",
		Help: "Batch flushes by sink",
	}, []string{"sink"})

	FlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kalshi_ingest_flush_duration_seconds",
		Help:    "Batch flush latency by sink",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"sink"})

	CheckpointSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ingest_checkpoint_saves_total",
		Help: "Cursor checkpoints written",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_ingest_runs_total",
		Help: "Completed runs by dataset and result",
	}, []string{"dataset", "result"})

	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_ingest_exports_total",
		Help: "Object store uploads by result",
	}, []string{"result"})

	ExportBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ingest_export_bytes_total",
		Help: "Bytes uploaded to the object store",
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
