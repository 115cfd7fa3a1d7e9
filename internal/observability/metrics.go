package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "volunteer_service",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted to Postgres.",
	})
	registrationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "volunteer_service",
		Subsystem: "persistence",
		Name:      "registrations_total",
		Help:      "Number of successful participant registrations.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, registrationCounter)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordRegistration counts a committed registration.
func RecordRegistration() {
	registrationCounter.Inc()
}
