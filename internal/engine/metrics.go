package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/paper_tiger/internal/models"
)

var (
	ordersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_orders_total",
		Help: "Orders submitted, labeled by side and acceptance outcome.",
	}, []string{"side", "outcome"})

	fillsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_fills_total",
		Help: "Fill slices executed, labeled by side.",
	}, []string{"side"})

	orderTerminalTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_order_terminal_total",
		Help: "Orders that reached a terminal status.",
	}, []string{"status"})

	matchPassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_match_passes_total",
		Help: "Matching passes executed.",
	})

	feedErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_feed_errors_total",
		Help: "Quote feed failures observed by the engine.",
	})

	equityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_equity_cny",
		Help: "Last computed total account equity in CNY.",
	})

	pendingOrdersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_pending_orders",
		Help: "Orders currently waiting in the matching queue.",
	})
)

func init() {
	prometheus.MustRegister(
		ordersTotal,
		fillsTotal,
		orderTerminalTotal,
		matchPassesTotal,
		feedErrorsTotal,
		equityGauge,
		pendingOrdersGauge,
	)
}

// recordOrder counts an order submission outcome ("accepted" or
// "rejected").
func recordOrder(side models.Side, outcome string) {
	ordersTotal.WithLabelValues(string(side), outcome).Inc()
}

// recordFill counts one executed order.
func recordFill(side models.Side) {
	fillsTotal.WithLabelValues(string(side)).Inc()
}

// recordTerminal counts an order reaching a terminal status.
func recordTerminal(status models.OrderStatus) {
	orderTerminalTotal.WithLabelValues(string(status)).Inc()
}

// recordMatchPass counts one matching pass.
func recordMatchPass() {
	matchPassesTotal.Inc()
}

// recordFeedError counts one quote feed failure.
func recordFeedError() {
	feedErrorsTotal.Inc()
}

// setEquity publishes the latest total equity.
func setEquity(total decimal.Decimal) {
	f, _ := total.Float64()
	equityGauge.Set(f)
}

// setPendingOrders publishes the current queue depth.
func setPendingOrders(n int) {
	pendingOrdersGauge.Set(float64(n))
}
