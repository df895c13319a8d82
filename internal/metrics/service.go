package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	serviceOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "service",
		Name:      "operations_total",
		Help:      "Count of escrow operations (lock, unlock, fund, submit, balances).",
	}, []string{"operation", "network", "status"})

	serviceOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "service",
		Name:      "operation_duration_seconds",
		Help:      "Duration of escrow operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})

	serviceFeeLovelace = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "service",
		Name:      "fee_lovelace",
		Help:      "Fee of built transactions in lovelace.",
		Buckets:   prometheus.ExponentialBuckets(100_000, 2, 8), // 0.1..12.8 ada
	}, []string{"operation", "network"})
)

// Service tracks metrics for the escrow orchestration service.
type Service struct {
	network string
}

// NewService constructs a Service collector for one network.
func NewService(network string) *Service {
	if network == "" {
		network = "unknown"
	}
	return &Service{network: network}
}

// Observe records an operation outcome and duration.
func (m Service) Observe(operation string, err error, started time.Time) {
	status := statusOf(err)
	serviceOperationsTotal.WithLabelValues(operation, m.network, status).Inc()
	serviceOperationDuration.WithLabelValues(operation, m.network, status).Observe(time.Since(started).Seconds())
}

// ObserveFee records the fee of a built transaction.
func (m Service) ObserveFee(operation string, fee uint64) {
	serviceFeeLovelace.WithLabelValues(operation, m.network).Observe(float64(fee))
}
