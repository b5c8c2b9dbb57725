// Package metrics defines the prometheus collectors exposed on /metrics,
// grounded on the counters the Geocoder89 event-hub worker keeps for
// claims, dispatches, and webhook outcomes, plus two for recurrence
// generation that have no teacher analog.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birthday_events_claimed_total",
		Help: "Total events transitioned PENDING -> PROCESSING by the claim engine.",
	})

	EventsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birthday_events_completed_total",
		Help: "Total events transitioned PROCESSING -> COMPLETED.",
	})

	EventsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birthday_events_failed_total",
		Help: "Total events transitioned PROCESSING -> FAILED.",
	})

	EventsTransientRetry = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birthday_events_transient_retry_total",
		Help: "Total events left PROCESSING after a transient delivery error, pending redelivery.",
	})

	RecurrenceGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birthday_recurrence_generated_total",
		Help: "Total next-year events successfully seeded by the recurrence generator.",
	})

	RecurrenceDuplicateSwallowed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birthday_recurrence_duplicate_swallowed_total",
		Help: "Total recurrence inserts that hit an existing idempotency key and were swallowed.",
	})

	WebhookAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birthday_webhook_attempts_total",
		Help: "Total webhook delivery attempts by outcome.",
	}, []string{"outcome"})

	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "birthday_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick, including the claim query.",
		Buckets: prometheus.DefBuckets,
	})
)

// Register adds every collector in this package to reg. Called once from
// the composition root, against prometheus.DefaultRegisterer so the
// collectors are reachable from promhttp.Handler()'s default gatherer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		EventsClaimed,
		EventsCompleted,
		EventsFailed,
		EventsTransientRetry,
		RecurrenceGenerated,
		RecurrenceDuplicateSwallowed,
		WebhookAttempts,
		TickDuration,
	)
}
