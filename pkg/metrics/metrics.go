package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orderbook_events_total", Help: "Normalized order events consumed, by exchange"},
		[]string{"exchange"},
	)
	OpportunitiesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "arbitrage_opportunities_total", Help: "Crossings reported"},
	)
	NeedlessRemovalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "needless_removals_total", Help: "Zero-quantity events for unknown price levels, by exchange"},
		[]string{"exchange"},
	)
	StreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stream_errors_total", Help: "Terminal adapter errors, by exchange"},
		[]string{"exchange"},
	)
	RunningBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "running_balance", Help: "Accumulated spread x matched quantity"},
	)
	BidLevels = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ledger_bid_levels", Help: "Distinct bid price levels"},
	)
	AskLevels = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ledger_ask_levels", Help: "Distinct ask price levels"},
	)
)

func Init() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		EventsTotal,
		OpportunitiesTotal,
		NeedlessRemovalsTotal,
		StreamErrorsTotal,
		RunningBalance,
		BidLevels,
		AskLevels,
	)
	return reg
}

// Serve exposes /metrics on addr. Errors are the caller's to log.
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
