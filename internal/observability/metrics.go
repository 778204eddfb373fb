// Package observability holds the process-wide Prometheus metrics for the
// bid pipeline, registered once on a private registry and exposed through
// the HTTP layer's /metrics route.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global collector instance for singleton pattern
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// Business metrics
	BidsAccepted prometheus.Counter

	// Broadcaster metrics
	ActiveSubscribers prometheus.Gauge
	SnapshotsSent     prometheus.Counter
	SnapshotsDropped  prometheus.Counter
}

// NewCollector creates the metrics collector for the given namespace. A
// singleton: repeated calls (from the hub, the bid processor, the HTTP
// layer, and tests) return the same instance, so nothing double-registers.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	bidsAccepted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bids_accepted_total",
			Help:      "Total number of bids accepted onto a scoreboard",
		},
	)

	activeSubscribers := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_active_subscribers",
			Help:      "Current number of leaderboard stream subscribers",
		},
	)

	snapshotsSent := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_snapshots_sent_total",
			Help:      "Total number of leaderboard snapshots delivered to subscribers",
		},
	)

	snapshotsDropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_snapshots_dropped_total",
			Help:      "Total number of snapshots dropped on full queues or slow subscribers",
		},
	)

	registry.MustRegister(
		bidsAccepted,
		activeSubscribers,
		snapshotsSent,
		snapshotsDropped,
	)

	globalCollector = &Collector{
		registry:          registry,
		BidsAccepted:      bidsAccepted,
		ActiveSubscribers: activeSubscribers,
		SnapshotsSent:     snapshotsSent,
		SnapshotsDropped:  snapshotsDropped,
	}

	return globalCollector
}

// Handler serves the collector's registry for a /metrics route.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ResetForTesting resets the global collector for testing purposes.
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}
