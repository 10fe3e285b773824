package notifications

import (
	"time"

	"github.com/electromart/notification-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "electromart"

var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "deliveries_total",
			Help:      "Delivery outcomes by channel, priority and result",
		},
		[]string{"channel", "priority", "result"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "dispatch_duration_seconds",
			Help:      "Time of a single channel dispatch attempt",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_depth",
			Help:      "Notification ids waiting in the delivery queue",
		},
	)

	statusGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "by_status",
			Help:      "Number of stored notifications by status",
		},
		[]string{"status"},
	)
)

func recordDelivery(channel, priority, result string) {
	deliveriesTotal.WithLabelValues(channel, priority, result).Inc()
}

func recordDispatchDuration(channel string, d time.Duration) {
	dispatchDuration.WithLabelValues(channel).Observe(d.Seconds())
}

func recordQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// RecordStatusCounts updates the per-status gauge from store counts.
func RecordStatusCounts(counts map[domain.Status]int64) {
	for status, count := range counts {
		statusGauge.WithLabelValues(string(status)).Set(float64(count))
	}
}
