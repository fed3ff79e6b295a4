package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tms_jobs_enqueued_total",
			Help: "Jobs accepted by the dispatcher",
		},
		[]string{"name"},
	)

	jobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tms_jobs_finished_total",
			Help: "Job attempts by result",
		},
		[]string{"name", "result"}, // completed, retried, failed, discarded
	)

	jobsRecoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tms_jobs_recovered_total",
			Help: "Stale active jobs handled by the sweep",
		},
		[]string{"result"}, // requeued, buried
	)

	queueErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tms_jobs_queue_errors_total",
			Help: "Queue store failures by operation",
		},
		[]string{"op"},
	)

	jobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tms_jobs_running",
			Help: "Jobs currently executing in this process",
		},
	)

	jobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tms_job_duration_seconds",
			Help:    "Handler execution time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"name"},
	)
)
