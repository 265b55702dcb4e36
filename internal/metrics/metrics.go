package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of completed strategy ticks"},
	)
	TicksSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_skipped_total", Help: "Ticks skipped because a venue quote was unavailable"},
		[]string{"venue"},
	)
	SignalsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_confirmed_total", Help: "Confirmed entry and exit signals"},
		[]string{"kind", "detail"},
	)
	LegsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "legs_total", Help: "Leg orders dispatched, by outcome"},
		[]string{"venue", "result"},
	)
	PartialFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "partial_failures_total", Help: "Two-leg executions where exactly one leg filled"},
	)
	ReconcileAdoptions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "reconcile_adoptions_total", Help: "Positions adopted from venue state"},
	)
	ReconcileClears = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "reconcile_clears_total", Help: "Virtual positions cleared to match flat venue state"},
	)
	PositionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "position_open", Help: "1 while a position is held, else 0"},
	)
	ZScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "spread_zscore", Help: "Current spread z-score per direction"},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, TicksSkipped, SignalsConfirmed, LegsTotal,
		PartialFailures, ReconcileAdoptions, ReconcileClears,
		PositionOpen, ZScore,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
