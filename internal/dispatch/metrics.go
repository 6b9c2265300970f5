package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "dispatch",
		Name:      "events_dispatched_total",
		Help:      "Number of activity change events delivered to at least one listener.",
	}, []string{"source", "activity_type", "transition_type"})

	droppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "dispatch",
		Name:      "events_dropped_total",
		Help:      "Number of activity change events dropped because no listener was registered.",
	}, []string{"source"})

	listenersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "motion_bridge",
		Subsystem: "dispatch",
		Name:      "listeners",
		Help:      "Number of registered event listeners across all sessions.",
	})
)

func init() {
	prometheus.MustRegister(dispatchedCounter, droppedCounter, listenersGauge)
}
