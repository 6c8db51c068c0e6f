package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// deliveries counts webhook deliveries by outcome (delivered, failed, filtered).
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "immotax",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Total webhook deliveries by outcome",
	}, []string{"outcome"})

	deliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "immotax",
		Subsystem: "webhook",
		Name:      "delivery_seconds",
		Help:      "Webhook delivery latency in seconds, retries included",
		Buckets:   prometheus.DefBuckets,
	})

	published = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "immotax",
		Subsystem: "nats",
		Name:      "published_total",
		Help:      "Total events published to NATS by status",
	}, []string{"status"})
)
