package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_fetch_chunks_total", Help: "Data source requests issued by the provider"},
		[]string{"source", "interval"},
	)
	BarsSimulatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_bars_simulated_total", Help: "Primary bars stepped through the simulation loop"},
		[]string{"symbol"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_fills_total", Help: "Fills written to run ledgers"},
		[]string{"symbol", "side"},
	)
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_runs_total", Help: "Backtest runs by outcome"},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(FetchChunksTotal, BarsSimulatedTotal, FillsTotal, RunsTotal)
}

// Handler routes /metrics to the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: Handler()}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
