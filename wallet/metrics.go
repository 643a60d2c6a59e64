package wallet

import "github.com/prometheus/client_golang/prometheus"

// Metrics observes wallet commits; it never participates in a
// transaction and can never cause a rollback. A nil *Metrics is valid
// and simply does nothing, so metrics stay optional.
type Metrics struct {
	balance    prometheus.Gauge
	operations *prometheus.CounterVec
}

// NewMetrics registers a balance gauge and a per-operation outcome
// counter on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_balance_sat",
			Help: "Current spendable wallet balance, in satoshis.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_operations_total",
			Help: "Count of wallet orchestrator operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.balance, m.operations)
	return m
}

func (m *Metrics) observeBalance(balance uint64) {
	if m == nil {
		return
	}
	m.balance.Set(float64(balance))
}

func (m *Metrics) observeOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}
