// Package metrics exposes Prometheus counters shared across the trading pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_ticks_total", Help: "Count of market ticks ingested"},
		[]string{"symbol"},
	)
	TicksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_ticks_dropped_total", Help: "Ticks dropped because a symbol queue was full"},
		[]string{"symbol"},
	)
	TicksDeduped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_ticks_deduped_total", Help: "Duplicate ticks discarded by the ingest dedup window"},
		[]string{"symbol"},
	)
	FeedReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "feed_reconnects_total", Help: "Feed transport reconnect attempts"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted by the strategy engine"},
		[]string{"symbol", "kind", "strategy"},
	)
	SignalsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_suppressed_total", Help: "Signals suppressed by the cool-down window"},
		[]string{"symbol", "kind"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_rejected_total", Help: "Orders that reached a REJECTED terminal state"},
		[]string{"symbol", "side"},
	)
	StopTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stop_triggers_total", Help: "Virtual stop-loss triggers emitted by the risk manager"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, TicksDropped, TicksDeduped, FeedReconnects,
		SignalsTotal, SignalsSuppressed,
		OrdersTotal, OrdersRejected, StopTriggers,
	)
}

// Serve starts a /metrics endpoint on the supplied address.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
