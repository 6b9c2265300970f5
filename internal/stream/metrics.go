package stream

import "github.com/prometheus/client_golang/prometheus"

var (
	clientsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "motion_bridge",
		Subsystem: "stream",
		Name:      "clients",
		Help:      "Open WebSocket stream connections.",
	})

	sentCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "stream",
		Name:      "events_sent_total",
		Help:      "Activity events written to stream clients.",
	})

	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "stream",
		Name:      "events_dropped_total",
		Help:      "Activity events dropped for slow stream clients.",
	})
)

func init() {
	prometheus.MustRegister(clientsGauge, sentCounter, droppedCounter)
}
