package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "echo_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// AvatarUploads counts avatar pipeline runs by outcome.
	AvatarUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_avatar_uploads_total",
		Help: "Avatar uploads by outcome",
	}, []string{"outcome"})

	// AvatarProcessingSeconds records decode+resize+encode time.
	AvatarProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "echo_avatar_processing_seconds",
		Help:    "Time spent transforming avatar images",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// AuthAttempts counts login and registration attempts by outcome.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_auth_attempts_total",
		Help: "Authentication attempts by outcome",
	}, []string{"outcome"})

	// PostsWritten counts post mutations by action.
	PostsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_posts_written_total",
		Help: "Post mutations by action",
	}, []string{"action"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
