// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_events_total",
			Help: "Total number of submission events received from the host",
		},
		[]string{"assessment", "event"},
	)

	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overdue_evaluations_total",
			Help: "Overdue evaluations by resulting snapshot action",
		},
		[]string{"action"},
	)

	LatePenaltyHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "late_penalty_percentage",
			Help:    "Distribution of late penalties applied to finished submissions",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"assessment"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
