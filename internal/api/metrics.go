package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradecore_trades_total",
		Help: "Completed round trips, by symbol and exit reason.",
	}, []string{"symbol", "exit_reason"})

	// A gauge, not a counter: losing trades move this down.
	tradePnL = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradecore_realized_pnl",
		Help: "Cumulative realized pnl, by symbol.",
	}, []string{"symbol"})

	backtestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradecore_backtests_total",
		Help: "Backtest runs served over the API.",
	})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradecore_ws_clients",
		Help: "Currently connected WebSocket clients.",
	})
)
