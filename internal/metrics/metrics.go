// Package metrics holds the Prometheus instrumentation of the matching daemon.
// Collectors register on the default registry at init; cmd/matchd serves them on /metrics.
package metrics

import (
	"time"

	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Match lifecycle
	MatchesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roommate_matches_created_total",
			Help: "Total number of matches created",
		},
		[]string{"kind"}, // "mutual", "direct"
	)

	MatchTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roommate_match_transitions_total",
			Help: "Total number of match status transitions",
		},
		[]string{"to"},
	)

	LifecycleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roommate_lifecycle_errors_total",
			Help: "Lifecycle operations that returned an error, by operation and error code",
		},
		[]string{"operation", "code"},
	)

	ScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roommate_compatibility_score",
			Help:    "Distribution of computed compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// Jobs
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roommate_jobs_processed_total",
			Help: "Total number of job executions by type and outcome",
		},
		[]string{"type", "outcome"}, // "completed", "rearmed", "failed", "retry"
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roommate_job_duration_seconds",
			Help:    "Duration of job handler executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	JobsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roommate_jobs",
			Help: "Current number of jobs per status",
		},
		[]string{"status"},
	)

	// Side effects
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roommate_notifications_dropped_total",
			Help: "Events dropped because the notification buffer was full",
		},
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roommate_notifications_delivered_total",
			Help: "Events handed to a sink, by sink and result",
		},
		[]string{"sink", "result"},
	)

	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roommate_chat_requests_total",
			Help: "Calls to the chat service by operation and result",
		},
		[]string{"operation", "result"},
	)

	ChatBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roommate_chat_breaker_state",
			Help: "Chat service circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// RecordLifecycleError counts a failed lifecycle operation by its error code
func RecordLifecycleError(operation string, err error) {
	if err == nil {
		return
	}
	code := errors.CodeOf(err)
	if code == "" {
		code = errors.ErrCodeInternalError
	}
	LifecycleErrors.WithLabelValues(operation, code).Inc()
}

// RecordJob records one job execution
func RecordJob(jobType, outcome string, duration time.Duration) {
	JobsProcessed.WithLabelValues(jobType, outcome).Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// UpdateJobGauges replaces the per-status job counts
func UpdateJobGauges(counts map[string]int64, statuses []string) {
	for _, status := range statuses {
		JobsByStatus.WithLabelValues(status).Set(float64(counts[status]))
	}
}

// RecordChatRequest records a chat service call
func RecordChatRequest(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ChatRequests.WithLabelValues(operation, result).Inc()
}

func RecordNotification(sink string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	NotificationsDelivered.WithLabelValues(sink, result).Inc()
}
