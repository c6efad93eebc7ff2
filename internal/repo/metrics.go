package repo

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Storage collectors. Labels are bounded: backend is native|fallback, shape
// is one of the seven query names (or "unsupported"), outcome is one of the
// values returned by outcome().
var (
	storeQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_store_queries_total",
			Help: "Total number of storage queries by backend, shape and outcome.",
		},
		[]string{"backend", "shape", "outcome"},
	)

	storeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messenger_store_query_duration_seconds",
			Help:    "Duration of storage queries in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "shape"},
	)

	persistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_store_persist_failures_total",
			Help: "Blob write-through failures in the fallback engine.",
		},
	)
)

func init() {
	prometheus.MustRegister(storeQueries, storeLatency, persistFailures)
}
