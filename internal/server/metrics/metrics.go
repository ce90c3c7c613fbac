// Package metrics provides observability for the trading pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the prometheus collectors for trading operations.
// A nil *Metrics is valid and records nothing, so tests can pass nil.
type Metrics struct {
	// Operation outcomes by kind ("swap", "limit_order", ...) and
	// outcome ("success", "failure").
	OperationsTotal *prometheus.CounterVec

	// End-to-end operation latency by kind.
	OperationDuration *prometheus.HistogramVec

	// RPC submission latency alone.
	SubmitDuration prometheus.Histogram
}

// New creates a Metrics instance with all collectors registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "barkbot_trade_operations_total",
			Help: "Total trading operations by kind and outcome",
		}, []string{"op", "outcome"}),

		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "barkbot_trade_operation_duration_seconds",
			Help:    "Duration of full trading operations including aggregator and RPC round-trips",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),

		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "barkbot_trade_submit_duration_seconds",
			Help:    "Duration of raw transaction submission to the RPC node",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m != nil {
		m.OperationsTotal.WithLabelValues(op, outcome).Inc()
		m.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

// ObserveSubmit records the latency of one RPC submission.
func (m *Metrics) ObserveSubmit(d time.Duration) {
	if m != nil {
		m.SubmitDuration.Observe(d.Seconds())
	}
}
