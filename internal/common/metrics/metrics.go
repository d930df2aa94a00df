// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lead_intake"

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_jobs_completed_total",
			Help:      "Total number of Zeebe jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_jobs_failed_total",
			Help:      "Total number of Zeebe jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_job_duration_seconds",
			Help:      "Duration of job processing in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_jobs_active",
			Help:      "Number of jobs currently in flight per worker",
		},
		[]string{"task_type"},
	)

	LeadsQualified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_qualified_total",
			Help:      "Qualification runs by resulting status",
		},
		[]string{"status"},
	)

	FollowUpsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "followups_scheduled_total",
			Help:      "Follow-up jobs created, by trigger (status name or manual)",
		},
		[]string{"trigger"},
	)

	FollowUpDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "followup_deliveries_total",
			Help:      "Follow-up delivery attempts by channel and outcome (sent, simulated, failed)",
		},
		[]string{"channel", "outcome"},
	)

	FollowUpDeliveriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "followup_deliveries_skipped_total",
			Help:      "Deliveries not attempted, by reason (not_pending, locked, claimed)",
		},
		[]string{"reason"},
	)

	FollowUpDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "followup_delivery_duration_seconds",
			Help:      "Channel send latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)
)
