// Package telemetry exposes Prometheus metrics the engine updates while
// running:
//   - trader_cycles_total                      – engine cycles completed
//   - trader_orders_total{action,side}        – gateway mutations (open|modify|close)
//   - trader_validation_rejections_total{check} – validator rejections by check
//   - trader_sequence_profit{symbol,side}     – aggregate sequence profit (gauge)
//   - trader_account_equity                   – account equity snapshot (gauge)
//
// Registered once in NewMetrics and served by the HTTP handler started in
// cmd/bot at /metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	cycles     prometheus.Counter
	orders     *prometheus.CounterVec
	rejections *prometheus.CounterVec
	seqProfit  *prometheus.GaugeVec
	equity     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_cycles_total",
			Help: "Engine cycles completed",
		}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Gateway mutations by action and side",
		}, []string{"action", "side"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_validation_rejections_total",
			Help: "Validator rejections by check",
		}, []string{"check"}),
		seqProfit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trader_sequence_profit",
			Help: "Aggregate sequence profit in account currency",
		}, []string{"symbol", "side"}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_account_equity",
			Help: "Account equity snapshot",
		}),
	}
	reg.MustRegister(m.cycles, m.orders, m.rejections, m.seqProfit, m.equity)
	return m
}

func (m *Metrics) CycleCompleted() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

func (m *Metrics) OrderAction(action, side string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(action, side).Inc()
}

func (m *Metrics) ValidationRejected(check string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(check).Inc()
}

func (m *Metrics) SetSequenceProfit(symbol, side string, profit float64) {
	if m == nil {
		return
	}
	m.seqProfit.WithLabelValues(symbol, side).Set(profit)
}

func (m *Metrics) SetEquity(equity float64) {
	if m == nil {
		return
	}
	m.equity.Set(equity)
}

// Handler returns the exposition handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
