package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails accepted by the relay",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total recipient-level send failures",
		},
	)

	BatchesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "batches_processed_total",
			Help: "Total batches completed and checkpointed",
		},
	)

	JobsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total bulk jobs that reached completed",
		},
	)

	JobPauses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "job_pauses_total",
			Help: "Total job pauses due to infrastructure errors",
		},
	)

	PollCyclesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_cycles_skipped_total",
			Help: "Poll cycles skipped because a previous cycle was still running",
		},
	)
)

func Init() {
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(BatchesProcessed)
	prometheus.MustRegister(JobsCompleted)
	prometheus.MustRegister(JobPauses)
	prometheus.MustRegister(PollCyclesSkipped)
}
