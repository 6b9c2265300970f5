package postgres

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "motion_bridge",
	Subsystem: "history",
	Name:      "query_duration_seconds",
	Help:      "Latency of motion sample statements.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation", "outcome"})

func init() {
	prometheus.MustRegister(queryDuration)
}

func observeQuery(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queryDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}
