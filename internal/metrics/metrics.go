// Package metrics provides Prometheus instrumentation for the identify
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service. Construct one per
// process (or per test registry) and inject it; collectors are registered on
// the given registerer at construction time.
type Metrics struct {
	IdentifyRequests   *prometheus.CounterVec
	PrimariesCreated   prometheus.Counter
	SecondariesCreated prometheus.Counter
	ClusterMerges      prometheus.Counter
	TxRetries          prometheus.Counter
	BreakerRejections  prometheus.Counter
	IdentifyDuration   prometheus.Histogram
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IdentifyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coalesce_identify_requests_total",
			Help: "Total identify requests by outcome.",
		}, []string{"outcome"}),
		PrimariesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_primaries_created_total",
			Help: "Total new primary contacts created (previously unknown identities).",
		}),
		SecondariesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_secondaries_created_total",
			Help: "Total secondary contacts created for novel identifiers.",
		}),
		ClusterMerges: factory.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_cluster_merges_total",
			Help: "Total requests that merged previously independent clusters.",
		}),
		TxRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_tx_retries_total",
			Help: "Total identify transactions re-run after a serialization conflict.",
		}),
		BreakerRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_breaker_rejections_total",
			Help: "Total identify requests rejected by the open storage circuit breaker.",
		}),
		IdentifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coalesce_identify_duration_seconds",
			Help:    "End-to-end identify latency, including transaction retries.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordOutcome increments the request counter for one finished request.
func (m *Metrics) RecordOutcome(outcome string) {
	m.IdentifyRequests.WithLabelValues(outcome).Inc()
}
