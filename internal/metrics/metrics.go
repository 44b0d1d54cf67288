// Package metrics — Prometheus-метрики движка, отдаются на /metrics health-сервера.
//
//   - trader_exchange_requests_total{endpoint,outcome}
//   - trader_orders_total{mode,side,outcome}
//   - trader_decisions_total{symbol,decision}
//   - trader_trailing_stops_total{symbol,direction}
//   - trader_partial_margin_total{symbol,step}
//   - trader_skips_total{symbol,reason}
//   - trader_sentiment_score{symbol}
//   - trader_position_direction{symbol} (-1 short, 0 none, 1 long)
//   - trader_cycle_duration_seconds
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ExchangeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_exchange_requests_total",
			Help: "Exchange REST requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders submitted",
		},
		[]string{"mode", "side", "outcome"}, // mode: live|paper
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_decisions_total",
			Help: "Decisions taken per closed candle",
		},
		[]string{"symbol", "decision"},
	)

	TrailingStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_trailing_stops_total",
			Help: "Trailing stop triggers",
		},
		[]string{"symbol", "direction"},
	)

	PartialMargin = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_partial_margin_total",
			Help: "Margin sequences that failed midway and need manual reconciliation",
		},
		[]string{"symbol", "step"},
	)

	Skips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_skips_total",
			Help: "Instrument cycles skipped",
		},
		[]string{"symbol", "reason"},
	)

	SentimentScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_sentiment_score",
			Help: "Last sentiment score used by the decision engine",
		},
		[]string{"symbol"},
	)

	PositionDirection = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_position_direction",
			Help: "Current position direction (-1 short, 0 none, 1 long)",
		},
		[]string{"symbol"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trader_cycle_duration_seconds",
			Help:    "Scheduler loop iteration duration",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(
		ExchangeRequests,
		Orders,
		Decisions,
		TrailingStops,
		PartialMargin,
		Skips,
		SentimentScore,
		PositionDirection,
		CycleDuration,
	)
}
