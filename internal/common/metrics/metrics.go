// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Completed turns by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	TurnFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turn_failures_total",
			Help: "Turns answered with a failure code",
		},
		[]string{"code"},
	)

	ClassificationMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_classification_misses_total",
			Help: "Oracle labels outside the intent enumeration",
		},
	)

	ClarificationResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_clarification_resets_total",
			Help: "Conversations returned to IDLE after an unresolved clarification",
		},
	)

	OracleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_request_duration_seconds",
			Help:    "Oracle call latency",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16},
		},
		[]string{"provider", "outcome"},
	)

	QueryRowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "query_rows_returned",
			Help:    "Rows returned per executed query plan",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
	)

	DroppedFilters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synthesizer_dropped_filters_total",
			Help: "Oracle filter triples rejected by the synthesizer",
		},
		[]string{"reason"},
	)

	ReportsFiled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraud_reports_total",
			Help: "Fraud reports appended per sink",
		},
		[]string{"sink", "outcome"},
	)
)
