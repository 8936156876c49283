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

	EntitlementEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_evaluations_total",
			Help: "Entitlement evaluations by resulting access state",
		},
		[]string{"access"}, // premium | trial | none
	)

	PushOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_dispatch_outcomes_total",
			Help: "Per-device push dispatch outcomes",
		},
		[]string{"provider", "status", "kind"},
	)

	PushAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "push_attempt_duration_seconds",
			Help:    "Duration of single push delivery attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	PushConfigWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_config_warnings_total",
			Help: "Batches that reported a provider configuration warning",
		},
		[]string{"provider"},
	)

	AccessReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_reports_total",
			Help: "Orchestrator runs by report status",
		},
		[]string{"status"},
	)
)
