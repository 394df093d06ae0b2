// Package metrics exposes Prometheus counters and gauges for the trading
// loop, served at /metrics in the Prometheus text exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SignalsTotal counts normalized signals by action.
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_signals_total",
			Help: "Normalized signals consumed, by action",
		},
		[]string{"action"},
	)

	// DenialsTotal counts admission denials by reason.
	DenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_denials_total",
			Help: "Admission denials, by reason",
		},
		[]string{"reason"},
	)

	// OrdersTotal counts accepted orders by side and kind.
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_orders_total",
			Help: "Orders accepted by the venue, by side and kind",
		},
		[]string{"side", "kind"},
	)

	// ExecErrorsTotal counts execution failures by kind.
	ExecErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_execution_errors_total",
			Help: "Execution failures, by kind",
		},
		[]string{"kind"},
	)

	// OpenSymbols reports the number of symbols with open lots.
	OpenSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirror_open_symbols",
			Help: "Symbols with at least one open lot",
		},
	)

	// EquityUSD reports the last observed account equity.
	EquityUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirror_equity_usd",
			Help: "Account equity in USD at the last snapshot",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SignalsTotal,
		DenialsTotal,
		OrdersTotal,
		ExecErrorsTotal,
		OpenSymbols,
		EquityUSD,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
