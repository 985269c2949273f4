// Package metrics declares the engine's Prometheus instrumentation
// (AMBIENT STACK, SPEC_FULL.md): generic HTTP metrics in the teacher's
// style, plus domain counters/histograms that give the blockchain and
// exchange clients observable behavior.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  prometheus.Gauge

	PostingsWrittenTotal    *prometheus.CounterVec
	BlockchainBroadcasts    *prometheus.CounterVec
	ExchangeCallDuration    *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txengine_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "txengine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HTTPActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "txengine_http_active_requests",
			Help: "In-flight HTTP requests.",
		}),
		PostingsWrittenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txengine_postings_written_total",
			Help: "Ledger postings written, by kind.",
		}, []string{"kind"}),
		BlockchainBroadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txengine_blockchain_broadcasts_total",
			Help: "Blockchain transaction broadcasts, by currency and outcome.",
		}, []string{"currency", "outcome"}),
		ExchangeCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "txengine_exchange_call_duration_seconds",
			Help:    "Duration of ExchangeClient calls, by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPActiveRequests,
		m.PostingsWrittenTotal, m.BlockchainBroadcasts, m.ExchangeCallDuration,
	)
	return m
}
