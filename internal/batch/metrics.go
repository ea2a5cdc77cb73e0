package batch

import "github.com/prometheus/client_golang/prometheus"

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remediation_decisions_total",
			Help: "Total remediation decisions produced",
		},
		[]string{"action", "severity"},
	)
	invalidRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remediation_invalid_records_total",
			Help: "Total input rows rejected by validation",
		},
	)
	dispatchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remediation_dispatch_errors_total",
			Help: "Total decisions that failed to dispatch",
		},
	)
	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remediation_batch_duration_seconds",
			Help:    "Wall time of batch runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(invalidRecords)
	prometheus.MustRegister(dispatchErrors)
	prometheus.MustRegister(batchDuration)
}
