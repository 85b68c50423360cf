package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BalanceSample is the gauge snapshot published after each committed operation.
type BalanceSample struct {
	Epoch          uint64
	Allocatable    float64
	Committed      float64
	Carry          float64
	TotalShares    float64
	TotalPrincipal float64
	RatePerShare   float64
}

type VaultMetrics struct {
	operations     *prometheus.CounterVec
	pool           *prometheus.GaugeVec
	totalShares    prometheus.Gauge
	totalPrincipal prometheus.Gauge
	ratePerShare   prometheus.Gauge
	epoch          prometheus.Gauge
	deferredEpochs prometheus.Counter
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the process-wide collectors, registering them with the
// default prometheus registry on first use.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = NewVaultMetrics()
		vaultRegistry.MustRegister(prometheus.DefaultRegisterer)
	})
	return vaultRegistry
}

// NewVaultMetrics builds unregistered collectors, mainly for tests using a
// private registry.
func NewVaultMetrics() *VaultMetrics {
	return &VaultMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_operations_total",
			Help: "Count of vault operations by name and result.",
		}, []string{"operation", "result"}),
		pool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_pool_balance",
			Help: "Reward pool balance split into allocatable, committed and carry.",
		}, []string{"bucket"}),
		totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vault_total_shares",
			Help: "Shares held by active validators.",
		}),
		totalPrincipal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vault_total_principal",
			Help: "Staked principal across all validators.",
		}),
		ratePerShare: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vault_reward_per_share",
			Help: "Accumulated reward per share.",
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vault_epoch",
			Help: "Epoch of the last committed operation.",
		}),
		deferredEpochs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vault_deferred_epochs_total",
			Help: "Epochs whose allocation was deferred because no shares existed.",
		}),
	}
}

func (m *VaultMetrics) MustRegister(reg prometheus.Registerer) {
	if m == nil || reg == nil {
		return
	}
	reg.MustRegister(
		m.operations,
		m.pool,
		m.totalShares,
		m.totalPrincipal,
		m.ratePerShare,
		m.epoch,
		m.deferredEpochs,
	)
}

// ObserveOperation counts an operation; an empty errLabel records success.
func (m *VaultMetrics) ObserveOperation(operation, errLabel string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	result := "ok"
	if errLabel != "" {
		result = errLabel
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *VaultMetrics) ObserveBalances(sample BalanceSample) {
	if m == nil {
		return
	}
	m.pool.WithLabelValues("allocatable").Set(sample.Allocatable)
	m.pool.WithLabelValues("committed").Set(sample.Committed)
	m.pool.WithLabelValues("carry").Set(sample.Carry)
	m.totalShares.Set(sample.TotalShares)
	m.totalPrincipal.Set(sample.TotalPrincipal)
	m.ratePerShare.Set(sample.RatePerShare)
	m.epoch.Set(float64(sample.Epoch))
}

func (m *VaultMetrics) AddDeferredEpochs(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.deferredEpochs.Add(float64(n))
}
