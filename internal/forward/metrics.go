package forward

import "github.com/prometheus/client_golang/prometheus"

var (
	forwardedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "forward",
		Name:      "events_forwarded_total",
		Help:      "Events written to the events topic.",
	})

	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "forward",
		Name:      "events_dropped_total",
		Help:      "Events dropped because the forward buffer was full.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "forward",
		Name:      "events_failed_total",
		Help:      "Events whose Kafka write failed.",
	})

	writeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "motion_bridge",
		Subsystem: "forward",
		Name:      "write_duration_seconds",
		Help:      "Latency of Kafka writes for forwarded events.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(forwardedCounter, droppedCounter, failedCounter, writeLatency)
}
