// Package diag is the engine's ambient observability surface: logger
// construction and a Prometheus metrics registry exposed over a small
// gorilla/mux router. It is grounded directly on service/core.go's
// Config.Logger/registry/routerAux trio, trimmed down from a full lake
// service to just the two concerns a library embedder actually needs
// — structured logs and a /metrics endpoint — since request routing,
// auth, and the rest of Core are out of this library's scope.
package diag

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kifbell/compgraph/errs"
)

// NewLogger builds a named production zap.Logger, or a no-op logger if
// construction fails (mirroring the teacher's conf.Logger == nil ->
// zap.NewNop() fallback rather than letting a logging failure take
// down the caller).
func NewLogger(name string) *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}

// Metrics holds the counters an embedder typically wants out of a
// compgraph run: rows produced per operator kind, bytes spilled to
// disk by external sort, and errors by kind.
type Metrics struct {
	Registry *prometheus.Registry

	RowsEmitted *prometheus.CounterVec
	SpillBytes  prometheus.Counter
	Errors      *prometheus.CounterVec
}

// NewMetrics builds a fresh registry with the Go runtime collector
// plus compgraph's own counters registered, matching core.go's
// registry.MustRegister(collectors.NewGoCollector()) pattern.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		Registry: registry,
		RowsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compgraph",
			Name:      "rows_emitted_total",
			Help:      "Rows emitted by each operator kind.",
		}, []string{"operator"}),
		SpillBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "compgraph",
			Name:      "sort_spill_bytes_total",
			Help:      "Bytes written to external sort spill segments.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compgraph",
			Name:      "errors_total",
			Help:      "Errors raised during a run, by kind.",
		}, []string{"kind"}),
	}
	registry.MustRegister(m.RowsEmitted, m.SpillBytes, m.Errors)
	return m
}

// CountRow increments RowsEmitted for the operator kind that just
// produced a row (one of "source", "map", "reduce", "sort", "join").
func (m *Metrics) CountRow(operator string) {
	m.RowsEmitted.WithLabelValues(operator).Inc()
}

// RecordSpill adds n bytes to SpillBytes, called once per segment
// external sort writes to disk.
func (m *Metrics) RecordSpill(n int64) {
	m.SpillBytes.Add(float64(n))
}

// Wire registers m as the target of errs.SetObserver, so every
// errs.New/errs.Wrap call anywhere in the module increments Errors
// under that error's Kind from the moment Wire is called. Without
// calling Wire, Errors stays at zero — errs has no ambient dependency
// on diag by default.
func Wire(m *Metrics) {
	errs.SetObserver(func(k errs.Kind) {
		m.Errors.WithLabelValues(k.String()).Inc()
	})
}

// Handler serves /metrics (Prometheus exposition format) and /status
// (plain "ok" liveness check) for a Metrics registry.
func Handler(m *Metrics) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	return r
}
