package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ResolutionsTotal  *prometheus.CounterVec
	InventoryRefusals prometheus.Counter
	WalletSkips       prometheus.Counter
	DuplicateRequests prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_resolutions_total",
				Help: "Resolutions processed, by status and outcome.",
			},
			[]string{"status", "outcome"},
		),
		InventoryRefusals: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "broker_inventory_refusals_total",
				Help: "Accepted resolutions refused because inventory would go negative.",
			},
		),
		WalletSkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "broker_wallet_skips_total",
				Help: "Wallet mutations skipped for missing transaction or user.",
			},
		),
		DuplicateRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "broker_duplicate_requests_total",
				Help: "Purchase requests ignored because the identifier already exists.",
			},
		),
	}
	registry.MustRegister(m.ResolutionsTotal, m.InventoryRefusals, m.WalletSkips, m.DuplicateRequests)
	return m
}

func (m *Metrics) IncResolution(status, outcome string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(status, outcome).Inc()
}

func (m *Metrics) IncRefusal() {
	if m == nil {
		return
	}
	m.InventoryRefusals.Inc()
}

func (m *Metrics) IncWalletSkip() {
	if m == nil {
		return
	}
	m.WalletSkips.Inc()
}

func (m *Metrics) IncDuplicateRequest() {
	if m == nil {
		return
	}
	m.DuplicateRequests.Inc()
}
