package queue

import "github.com/prometheus/client_golang/prometheus"

// Job outcomes used as the "outcome" label.
const (
	outcomeCompleted    = "completed"
	outcomeRetried      = "retried"
	outcomeDeadLettered = "dead_lettered"
	outcomeReleased     = "released"
)

var (
	// jobsProcessed counts handler runs by queue and outcome.
	jobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of job executions by outcome.",
		},
		[]string{"queue", "outcome"},
	)

	// jobsDeadLettered counts jobs that exhausted their attempts.
	jobsDeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_dead_lettered_total",
			Help: "Total number of jobs moved to the dead-letter sink.",
		},
		[]string{"queue"},
	)

	// jobDuration records handler run time in seconds. Provider scans can
	// take minutes, so buckets extend past the HTTP defaults.
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Duration of job handler executions in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"queue"},
	)

	// jobsInflight gauges handlers currently running.
	jobsInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_inflight",
			Help: "Current number of running job handlers.",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(jobsProcessed, jobsDeadLettered, jobDuration, jobsInflight)
}
