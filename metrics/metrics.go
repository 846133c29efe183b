// Package metrics exposes collector counters to Prometheus together with the
// liveness endpoints.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "netcollector"

// Drop reasons
const (
	ReasonUnknownFlow = "unknown_flow"
	ReasonRowWidth    = "row_width"
	ReasonQueryError  = "query_error"
)

// Metrics holds the collector's Prometheus collectors
type Metrics struct {
	MessagesEnqueued *prometheus.CounterVec
	RowsPersisted    *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	ConnectFailures  *prometheus.CounterVec
	WorkerUp         *prometheus.GaugeVec

	factory promauto.Factory
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		factory: factory,
		MessagesEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_enqueued_total",
			Help:      "Batches put on the record queue by polling workers",
		}, []string{"flow"}),
		RowsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_persisted_total",
			Help:      "Rows committed to the store",
		}, []string{"flow"}),
		MessagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Batches discarded by the persistence worker",
		}, []string{"flow", "reason"}),
		ConnectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Failed attempts to connect to a device or the store",
		}, []string{"worker"}),
		WorkerUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_up",
			Help:      "1 while the worker is running",
		}, []string{"worker"}),
	}
}

// WatchQueue exports the current queue length, sampled at scrape time
func (m *Metrics) WatchQueue(length func() int) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_length",
		Help:      "Batches waiting for the persistence worker",
	}, func() float64 {
		return float64(length())
	})
}
