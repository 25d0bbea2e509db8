package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderpulse_events_dispatched_total",
			Help: "Notification events enqueued by trigger and channel",
		},
		[]string{"trigger", "channel"},
	)

	eventsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderpulse_events_deduplicated_total",
			Help: "Dispatch calls dropped because the event key already existed",
		},
		[]string{"trigger", "channel"},
	)

	eventsBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderpulse_events_toggle_blocked_total",
			Help: "Dispatch calls dropped by a disabled toggle",
		},
		[]string{"trigger", "channel"},
	)

	eventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderpulse_events_processed_total",
			Help: "Worker outcomes by terminal status",
		},
		[]string{"status", "trigger"},
	)

	deliveryLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderpulse_delivery_latency_seconds",
			Help:    "Time from enqueue to delivery",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)

	carrierFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderpulse_carrier_fetches_total",
			Help: "Carrier history fetches by carrier and result code",
		},
		[]string{"carrier", "code"},
	)

	packagesReconciled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderpulse_packages_reconciled_total",
			Help: "Packages whose delivery date was advanced by a sync run",
		},
	)

	ordersRolledUp = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderpulse_orders_rolled_up_total",
			Help: "Orders whose rollup delivery date was propagated",
		},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderpulse_sync_duration_seconds",
			Help:    "Duration of one reconciliation run",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDispatched counts an enqueued event.
func RecordDispatched(trigger, channel string) {
	eventsDispatched.WithLabelValues(trigger, channel).Inc()
}

// RecordDeduplicated counts a dispatch collapsed onto an existing event key.
func RecordDeduplicated(trigger, channel string) {
	eventsDeduplicated.WithLabelValues(trigger, channel).Inc()
}

// RecordToggleBlocked counts a dispatch dropped by a disabled toggle.
func RecordToggleBlocked(trigger, channel string) {
	eventsBlocked.WithLabelValues(trigger, channel).Inc()
}

// RecordProcessed counts a worker outcome.
func RecordProcessed(status, trigger string) {
	eventsProcessed.WithLabelValues(status, trigger).Inc()
}

// RecordDeliveryLatency observes the enqueue-to-delivery delay.
func RecordDeliveryLatency(d time.Duration) {
	deliveryLatency.Observe(d.Seconds())
}

// RecordCarrierFetch counts a carrier history fetch; code is "ok" or the
// provider error code.
func RecordCarrierFetch(carrier, code string) {
	carrierFetches.WithLabelValues(carrier, code).Inc()
}

// RecordPackageReconciled counts an advanced package delivery date.
func RecordPackageReconciled() {
	packagesReconciled.Inc()
}

// RecordOrderRolledUp counts a propagated order rollup.
func RecordOrderRolledUp() {
	ordersRolledUp.Inc()
}

// RecordSyncDuration observes the duration of one reconciliation run.
func RecordSyncDuration(d time.Duration) {
	syncDuration.Observe(d.Seconds())
}
