package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics replaces the teacher's hand-rolled pkg/metrics/streaming.go
// counters (TotalConnections/TotalEvents/DroppedEvents/...) with
// Prometheus collectors exposing the same signals: RPC call volume and
// latency by method/outcome, and live SSE subscriber counts.
type metrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	subscribers prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "a2a_rpc_requests_total",
			Help: "JSON-RPC requests handled, by method and outcome.",
		}, []string{"method", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "a2a_rpc_request_duration_seconds",
			Help:    "JSON-RPC request handling latency by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "a2a_sse_subscribers",
			Help: "Currently connected SSE subscribers across all streaming methods.",
		}),
	}
	// A second Server in the same process reuses the collectors already
	// registered under these names instead of panicking.
	register := func(c prometheus.Collector) prometheus.Collector {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			return are.ExistingCollector
		}
		return c
	}
	m.requests = register(m.requests).(*prometheus.CounterVec)
	m.latency = register(m.latency).(*prometheus.HistogramVec)
	m.subscribers = register(m.subscribers).(prometheus.Gauge)
	return m
}

func (m *metrics) observe(method string, start time.Time, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (m *metrics) subscriberOpened() { m.subscribers.Inc() }
func (m *metrics) subscriberClosed() { m.subscribers.Dec() }
