package functions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// invocations counts function calls by function and response code.
	invocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "immotax",
		Subsystem: "functions",
		Name:      "invocations_total",
		Help:      "Total function invocations by function and status",
	}, []string{"function", "status"})

	// durations measures the time spent in functions.
	durations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "immotax",
		Subsystem: "functions",
		Name:      "duration_seconds",
		Help:      "Function duration in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"function"})
)
