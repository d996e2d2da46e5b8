package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_mutations_total",
			Help: "Total number of registration mutations by operation",
		},
		[]string{"operation"}, // signup | cancel | move | remove | assign | guest_signup
	)

	capacityRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_capacity_rejections_total",
			Help: "Total number of sign-up or move attempts rejected for capacity",
		},
	)

	lockTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_lock_timeouts_total",
			Help: "Total number of roster lock acquisitions that timed out",
		},
	)

	reminderClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_claims_total",
			Help: "Total number of reminder dedup gate decisions",
		},
		[]string{"outcome"}, // claimed | duplicate | fail_open
	)

	cascadeDeletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_cascade_deletions_total",
			Help: "Total number of completed event cascade deletions",
		},
	)

	notificationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_failures_total",
			Help: "Total number of fire-and-forget notification failures (logged, never surfaced)",
		},
		[]string{"kind"},
	)
)

func RecordMutation(operation string) {
	registrationsTotal.WithLabelValues(operation).Inc()
}

func RecordCapacityRejection() {
	capacityRejectionsTotal.Inc()
}

func RecordLockTimeout() {
	lockTimeoutsTotal.Inc()
}

func RecordReminderClaim(outcome string) {
	reminderClaimsTotal.WithLabelValues(outcome).Inc()
}

func RecordCascadeDeletion() {
	cascadeDeletionsTotal.Inc()
}

func RecordNotificationFailure(kind string) {
	notificationFailuresTotal.WithLabelValues(kind).Inc()
}

// Handler exposes the prometheus scrape endpoint for the ops server.
func Handler() http.Handler {
	return promhttp.Handler()
}
