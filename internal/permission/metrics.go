package permission

import "github.com/prometheus/client_golang/prometheus"

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "permission",
		Name:      "requests_total",
		Help:      "Permission requests grouped by resolved status.",
	}, []string{"status"})

	promptCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "permission",
		Name:      "prompts_total",
		Help:      "Number of system permission dialogs shown.",
	})

	sharedRequestCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "motion_bridge",
		Subsystem: "permission",
		Name:      "coalesced_requests_total",
		Help:      "Permission requests that joined an already pending dialog.",
	})
)

func init() {
	prometheus.MustRegister(requestCounter, promptCounter, sharedRequestCounter)
}
