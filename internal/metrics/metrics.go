// Package metrics provides Prometheus instrumentation for the rivaldex service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rivaldex"

var registry = prometheus.NewRegistry()

var (
	// IngestionsTotal counts pipeline invocations by terminal outcome.
	IngestionsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingestions_total",
		Help:      "Competitor ingestions by outcome.",
	}, []string{"outcome"})

	// IngestionDuration observes end-to-end pipeline latency.
	IngestionDuration = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingestion_duration_seconds",
		Help:      "End-to-end competitor ingestion duration.",
		Buckets:   prometheus.DefBuckets,
	})

	// ImagesTotal counts image materialization results.
	ImagesTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "images_total",
		Help:      "Image materializations by result.",
	}, []string{"result"})
)

// Outcome label values for IngestionsTotal.
const (
	OutcomeSuccess           = "success"
	OutcomeNotFound          = "not_found"
	OutcomeSourceUnavailable = "source_unavailable"
	OutcomeInternalError     = "internal_error"
)

// Result label values for ImagesTotal.
const (
	ImageStored   = "stored"
	ImageDegraded = "degraded"
	ImageSkipped  = "skipped"
)

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
