package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradecore_engine_ticks_total",
		Help: "Scheduler loop iterations.",
	})

	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradecore_engine_cycles_total",
		Help: "Strategy cycles admitted past the schedule gate, by strategy.",
	}, []string{"strategy"})

	cyclesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradecore_engine_cycles_skipped_total",
		Help: "Admitted cycles abandoned before signal evaluation, by strategy and reason.",
	}, []string{"strategy", "reason"})

	openPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradecore_engine_open_positions",
		Help: "Positions currently tracked across all strategies.",
	})
)
