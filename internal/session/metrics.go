package session

import "github.com/prometheus/client_golang/prometheus"

var (
	trackingCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "session",
		Name:      "tracking_requests_total",
		Help:      "Start and stop requests grouped by resulting tracking status.",
	}, []string{"operation", "status"})

	receiverGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "motion_bridge",
		Subsystem: "session",
		Name:      "receivers_registered",
		Help:      "Number of lifecycle receivers currently registered.",
	})
)

func init() {
	prometheus.MustRegister(trackingCounter, receiverGauge)
}
