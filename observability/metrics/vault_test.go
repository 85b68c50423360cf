package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestVaultMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewVaultMetrics()
	m.MustRegister(reg)

	m.ObserveOperation("deposit", "")
	m.ObserveOperation("deposit", "")
	m.ObserveOperation("withdraw", "insufficient_pool")
	m.ObserveBalances(BalanceSample{Epoch: 12, Allocatable: 1000, Committed: 200, Carry: 50, TotalShares: 3})
	m.AddDeferredEpochs(4)
	m.AddDeferredEpochs(0)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("deposit", "ok")); got != 2 {
		t.Fatalf("expected 2 deposits, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("withdraw", "insufficient_pool")); got != 1 {
		t.Fatalf("expected 1 failed withdraw, got %v", got)
	}
	if got := testutil.ToFloat64(m.pool.WithLabelValues("carry")); got != 50 {
		t.Fatalf("expected carry 50, got %v", got)
	}
	if got := testutil.ToFloat64(m.epoch); got != 12 {
		t.Fatalf("expected epoch 12, got %v", got)
	}
	if got := testutil.ToFloat64(m.deferredEpochs); got != 4 {
		t.Fatalf("expected 4 deferred epochs, got %v", got)
	}
}

func TestVaultMetricsNilSafe(t *testing.T) {
	var m *VaultMetrics
	m.ObserveOperation("deposit", "")
	m.ObserveBalances(BalanceSample{})
	m.AddDeferredEpochs(1)
	m.MustRegister(prometheus.NewRegistry())
}
