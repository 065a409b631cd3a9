// Package metrics exposes Prometheus instrumentation for the pipeline:
// provider calls, retries, embedding cache efficiency, clustering output,
// generative cache hits and run outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
	OutcomeFallback = "fallback"
	OutcomeCached   = "cached"
)

var (
	// Provider Metrics
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewpulse_provider_calls_total",
			Help: "Outbound provider calls by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewpulse_provider_retries_total",
			Help: "Retries of transient provider failures",
		},
		[]string{"operation"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewpulse_provider_call_duration_seconds",
			Help:    "Duration of outbound provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Embedding Cache Metrics
	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewpulse_embedding_cache_hits_total",
			Help: "Embeddings served from the cache",
		},
	)

	EmbeddingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewpulse_embedding_cache_misses_total",
			Help: "Embeddings computed by the provider",
		},
	)

	// Clustering Metrics
	ClustersFormed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reviewpulse_clusters_per_run",
			Help:    "Clusters produced per clustering pass",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	NoisePoints = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewpulse_noise_points_total",
			Help: "Reviews classified as noise",
		},
	)

	// Generative Metrics
	ThemeLabels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewpulse_theme_labels_total",
			Help: "Theme labels by source (cached, success, fallback)",
		},
		[]string{"outcome"},
	)

	Syntheses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewpulse_syntheses_total",
			Help: "Action syntheses by outcome",
		},
		[]string{"outcome"},
	)

	ActionsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewpulse_actions_inserted_total",
			Help: "Actions inserted after deduplication",
		},
	)

	// Run Metrics
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewpulse_runs_total",
			Help: "Ingestion runs by outcome",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewpulse_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// Review Source Metrics
	ReviewsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewpulse_reviews_fetched_total",
			Help: "Raw reviews returned by review sources",
		},
		[]string{"source"},
	)

	// MCP Metrics
	MCPSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewpulse_mcp_sessions_total",
			Help: "MCP client sessions initialised",
		},
	)
)

// RecordProviderCall records one provider call.
func RecordProviderCall(provider, operation string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	ProviderCalls.WithLabelValues(provider, operation, outcome).Inc()
	ProviderDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEmbeddingCache records cache hits and misses for one batch.
func RecordEmbeddingCache(hits, misses int) {
	EmbeddingCacheHits.Add(float64(hits))
	EmbeddingCacheMisses.Add(float64(misses))
}

// RecordClustering records the output of one clustering pass.
func RecordClustering(clusters, noise int) {
	ClustersFormed.Observe(float64(clusters))
	NoisePoints.Add(float64(noise))
}

// ObserveStage records how long a stage took since start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
