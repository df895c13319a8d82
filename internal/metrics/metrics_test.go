package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func delta(t *testing.T, collector prometheus.Collector, observe func()) float64 {
	t.Helper()

	before := testutil.ToFloat64(collector)
	observe()
	after := testutil.ToFloat64(collector)
	return after - before
}

func TestLedgerClientRecords(t *testing.T) {
	m := NewLedgerClient("")
	start := time.Now().Add(-200 * time.Millisecond)

	if inc := delta(t, ledgerRequestsTotal.WithLabelValues("list_utxos", "unknown", "success"), func() {
		m.Observe("list_utxos", nil, start)
	}); inc != 1 {
		t.Fatalf("expected ledger success counter increment, got %v", inc)
	}

	if inc := delta(t, ledgerRequestsTotal.WithLabelValues("submit", "unknown", "error"), func() {
		m.Observe("submit", errors.New("oops"), start)
	}); inc != 1 {
		t.Fatalf("expected ledger error counter increment, got %v", inc)
	}

	if inc := delta(t, ledgerRetriesTotal.WithLabelValues("list_utxos", "unknown"), func() {
		m.ObserveRetry("list_utxos")
	}); inc != 1 {
		t.Fatalf("expected retry counter increment, got %v", inc)
	}
}

func TestServiceRecords(t *testing.T) {
	m := NewService("preview")
	start := time.Now().Add(-time.Second)

	if inc := delta(t, serviceOperationsTotal.WithLabelValues("lock", "preview", "success"), func() {
		m.Observe("lock", nil, start)
	}); inc != 1 {
		t.Fatalf("expected lock success increment, got %v", inc)
	}

	if inc := delta(t, serviceOperationsTotal.WithLabelValues("unlock", "preview", "error"), func() {
		m.Observe("unlock", errors.New("fail"), start)
	}); inc != 1 {
		t.Fatalf("expected unlock error increment, got %v", inc)
	}

	m.ObserveFee("lock", 180_000)
}
