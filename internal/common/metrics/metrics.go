package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_completed_total",
			Help: "Total number of jobs completed per queue",
		},
		[]string{"queue"},
	)

	QueueJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_failed_total",
			Help: "Total number of jobs that exhausted their attempts per queue",
		},
		[]string{"queue"},
	)

	QueueJobRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_job_retries_total",
			Help: "Total number of failed attempts scheduled for retry per queue",
		},
		[]string{"queue"},
	)

	QueueJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "queue_job_duration_seconds",
			Help: "Duration of one job attempt in seconds",
		},
		[]string{"queue"},
	)

	QueueJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_jobs_active",
			Help: "Number of jobs currently being processed per queue",
		},
		[]string{"queue"},
	)

	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_jobs_enqueued_total",
			Help: "Total number of enqueue calls by channel and result",
		},
		[]string{"channel", "result"},
	)

	DeliveryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_outcomes_total",
			Help: "Delivery attempts by channel and outcome (delivered, rejected, error)",
		},
		[]string{"channel", "outcome"},
	)

	AdminAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_admin_alerts_total",
			Help: "Administrator alerts by channel and result",
		},
		[]string{"channel", "result"},
	)
)
