package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "limelapse",
		Name:      "events_published_total",
		Help:      "Total number of pipeline events published to the bus",
	}, []string{"type"})

	StageEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "limelapse",
		Name:      "stage_events_total",
		Help:      "Pipeline events seen per stage, by outcome (handled, skipped, dropped, failed)",
	}, []string{"stage", "outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "limelapse",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stage handling",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"})

	CollaboratorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "limelapse",
		Name:      "collaborator_duration_seconds",
		Help:      "Duration of calls to ML and export collaborators",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"collaborator"})

	EmbeddingsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "limelapse",
		Name:      "embeddings_stored_total",
		Help:      "Total number of picture embeddings upserted",
	})

	RenditionsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "limelapse",
		Name:      "renditions_written_total",
		Help:      "Resized renditions written per target resolution",
	}, []string{"resolution"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "limelapse",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
