// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_decided_total",
			Help: "Delivery decisions by outcome and category",
		},
		[]string{"outcome", "category"},
	)

	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_deliveries_total",
			Help: "Channel delivery attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	DigestFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_digest_flushes_total",
			Help: "Digest flush attempts by result",
		},
		[]string{"result"},
	)

	DigestQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_digest_queue_entries",
			Help: "Entries waiting in digest queues, by category",
		},
		[]string{"category"},
	)

	EmailStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_email_status_total",
			Help: "Email message status transitions",
		},
		[]string{"status"},
	)

	PreferenceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_preference_updates_total",
			Help: "Preference update attempts by result",
		},
		[]string{"result"},
	)

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
)
