// Package metrics exposes application metrics collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vesting_escrow"

var (
	ledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger_client",
		Name:      "operations_total",
		Help:      "Count of ledger indexer operations.",
	}, []string{"operation", "network", "status"})
	ledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger_client",
		Name:      "operation_duration_seconds",
		Help:      "Duration of ledger indexer operations, retries included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})
	ledgerRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger_client",
		Name:      "retries_total",
		Help:      "Count of retried ledger indexer requests.",
	}, []string{"operation", "network"})
)

// LedgerClient tracks metrics for calls to the ledger indexer.
type LedgerClient struct {
	network string
}

// NewLedgerClient constructs a metrics collector for indexer calls.
func NewLedgerClient(network string) *LedgerClient {
	if network == "" {
		network = "unknown"
	}
	return &LedgerClient{network: network}
}

// Observe records a single operation outcome and duration.
func (m LedgerClient) Observe(operation string, err error, started time.Time) {
	status := statusOf(err)
	ledgerRequestsTotal.WithLabelValues(operation, m.network, status).Inc()
	ledgerRequestDuration.WithLabelValues(operation, m.network, status).Observe(time.Since(started).Seconds())
}

// ObserveRetry counts a request that is about to be repeated.
func (m LedgerClient) ObserveRetry(operation string) {
	ledgerRetriesTotal.WithLabelValues(operation, m.network).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
