package observability

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type transferMetrics struct {
	transfers *prometheus.CounterVec
	volume    *prometheus.CounterVec
}

var (
	transferMetricsOnce sync.Once
	transferRegistry    *transferMetrics
)

// Transfers returns the metrics registry tracking token ledger movements.
func Transfers() *transferMetrics {
	transferMetricsOnce.Do(func() {
		transferRegistry = &transferMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vault",
				Subsystem: "bank",
				Name:      "transfers_total",
				Help:      "Count of token ledger transfers segmented by direction.",
			}, []string{"direction"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vault",
				Subsystem: "bank",
				Name:      "transfer_volume",
				Help:      "Token units moved by the ledger segmented by direction.",
			}, []string{"direction"}),
		}
		prometheus.MustRegister(transferRegistry.transfers, transferRegistry.volume)
	})
	return transferRegistry
}

// RecordTransfer increments the transfer counters for the supplied direction
// (in, out, mint or internal).
func (m *transferMetrics) RecordTransfer(direction string, amount *big.Int) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(direction))
	if normalized == "" {
		normalized = "unknown"
	}
	m.transfers.WithLabelValues(normalized).Inc()
	if amount != nil && amount.Sign() > 0 {
		m.volume.WithLabelValues(normalized).Add(bigToFloat(amount))
	}
}
