package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "govb_ticks_processed_total",
			Help: "Total number of polling iterations completed.",
		},
	)

	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govb_orders_submitted_total",
			Help: "Total number of orders submitted (by kind).",
		},
		[]string{"kind"},
	)

	SessionResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "govb_session_resets_total",
			Help: "Total number of daily session resets performed.",
		},
	)

	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govb_fetch_errors_total",
			Help: "Market data fetch failures recovered locally (by phase).",
		},
		[]string{"phase"},
	)

	BlacklistSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "govb_blacklist_size",
			Help: "Number of tickers currently blocked from re-entry.",
		},
	)

	BudgetPerCoin = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "govb_budget_per_coin_krw",
			Help: "KRW allocated per coin on the most recent tick.",
		},
	)
)

func init() {
	prometheus.MustRegister(TicksProcessed, OrdersSubmitted, SessionResets,
		FetchErrors, BlacklistSize, BudgetPerCoin)
}
