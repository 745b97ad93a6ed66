package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keepsake_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ModerationTransitions counts scrapbook moderation decisions by action
	// and outcome (applied, conflict, not_found).
	ModerationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keepsake_moderation_transitions_total",
		Help: "Total scrapbook moderation decisions by action and outcome",
	}, []string{"action", "outcome"})

	// ImageProcessingDuration records upload processing latency by stage
	// (store, thumbnail, webp).
	ImageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keepsake_image_processing_seconds",
		Help:    "Image upload processing latency in seconds by stage",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"stage"})

	// UploadBytes records the size of accepted memory uploads.
	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "keepsake_upload_bytes",
		Help:    "Size in bytes of accepted memory image uploads",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	// SignInAttempts counts sign-in attempts by result (success, blocked, invalid).
	SignInAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keepsake_signin_attempts_total",
		Help: "Total sign-in attempts by result",
	}, []string{"result"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}

// RecordModeration increments the moderation decision counter.
func RecordModeration(action, outcome string) {
	ModerationTransitions.WithLabelValues(action, outcome).Inc()
}

// TrackImageStage returns a function that records stage latency when called.
func TrackImageStage(stage string) func() {
	start := time.Now()
	return func() {
		ImageProcessingDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
