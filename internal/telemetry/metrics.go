// Package telemetry exposes the engine's Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every gauge and counter the engine reports.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal    *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	TradesTotal    *prometheus.CounterVec
	RejectsTotal   *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec

	PortfolioValue prometheus.Gauge
	Cash           prometheus.Gauge
	DrawdownPct    prometheus.Gauge
	OpenPositions  prometheus.Gauge
	QuotaRemaining prometheus.Gauge
}

// NewMetrics builds and registers the metric set on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotor_cycles_total",
				Help: "Engine cycles run, by outcome",
			},
			[]string{"outcome"},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rotor_cycle_duration_seconds",
				Help:    "Wall-clock duration of one full engine cycle",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		TradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotor_trades_total",
				Help: "Trades applied to the ledger, by type",
			},
			[]string{"type"},
		),

		RejectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotor_rejects_total",
				Help: "Decisions rejected by the ledger, by reason",
			},
			[]string{"reason"},
		),

		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotor_provider_errors_total",
				Help: "Market data fetch failures, by operation",
			},
			[]string{"operation"},
		),

		PortfolioValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rotor_portfolio_value_dollars",
				Help: "Marked-to-market total portfolio value",
			},
		),

		Cash: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rotor_cash_dollars",
				Help: "Uninvested cash balance",
			},
		),

		DrawdownPct: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rotor_drawdown_percent",
				Help: "Decline from peak portfolio value, zero or negative",
			},
		),

		OpenPositions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rotor_open_positions",
				Help: "Number of open positions",
			},
		),

		QuotaRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rotor_provider_quota_remaining",
				Help: "Whole tokens left in the provider's daily budget",
			},
		),
	}

	m.registry.MustRegister(
		m.CyclesTotal, m.CycleDuration, m.TradesTotal, m.RejectsTotal,
		m.ProviderErrors, m.PortfolioValue, m.Cash, m.DrawdownPct,
		m.OpenPositions, m.QuotaRemaining,
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
