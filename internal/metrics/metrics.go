// Package metrics holds the Prometheus collectors for the service.
// They register on the default registry, which /metrics serves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Score feed
	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_feed_requests_total",
			Help: "Requests made to the score feed",
		},
		[]string{"endpoint", "status"},
	)

	FeedRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picks_feed_request_duration_seconds",
			Help:    "Duration of score feed requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	FeedCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picks_feed_cache_hits_total",
			Help: "Score feed responses served from cache",
		},
	)

	FeedCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picks_feed_cache_misses_total",
			Help: "Score feed lookups that had to go upstream",
		},
	)

	// Sync pipeline
	SyncEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_sync_events_total",
			Help: "Feed events handled by sync, by outcome",
		},
		[]string{"outcome"}, // created, updated, failed
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picks_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"scope"}, // week, current, season
	)

	GamesGradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picks_games_graded_total",
			Help: "Grading passes run on final games",
		},
	)

	PredictionsGradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picks_predictions_graded_total",
			Help: "Prediction rows written by grading",
		},
	)

	// Predictions API
	PredictionWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_prediction_writes_total",
			Help: "Bulk prediction items, by result",
		},
		[]string{"result"}, // applied, skipped_locked
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picks_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
