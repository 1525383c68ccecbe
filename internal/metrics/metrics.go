// Package metrics exposes Prometheus counters and a histogram over engine
// events, simplified from DimaJoyti-ai-agentic-crypto-browser's
// pkg/observability/metrics.go: that repo wraps prometheus/client_golang
// behind a full OpenTelemetry meter provider; this package registers
// directly against a prometheus.Registry since the simulator has no other
// OTel-instrumented surface to share a meter with.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketsim/internal/engine"
)

// Metrics holds the simulator's Prometheus collectors, registered against
// their own registry so a host running several sessions can expose one
// shared /metrics endpoint without colliding with the default registry.
type Metrics struct {
	registry       *prometheus.Registry
	eventsTotal    *prometheus.CounterVec
	tradesTotal    prometheus.Counter
	ordersRejected prometheus.Counter
	tickDuration   prometheus.Histogram
}

// New constructs and registers the simulator's collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sim",
			Name:      "events_total",
			Help:      "Total engine events emitted, by kind.",
		}, []string{"type"}),
		tradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sim",
			Name:      "trades_total",
			Help:      "Total trades executed across all sessions.",
		}),
		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sim",
			Name:      "orders_rejected_total",
			Help:      "Total order placements rejected for invalid quantity or price.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sim",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock time spent processing one simulated tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(m.eventsTotal, m.tradesTotal, m.ordersRejected, m.tickDuration)
	return m
}

// Handler returns the HTTP handler serving this instance's registry in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent records one engine event by kind, and bumps the trade
// counter on trade events. Intended as a runner.Options.EventSink.
func (m *Metrics) ObserveEvent(ev engine.Event) {
	m.eventsTotal.WithLabelValues(eventKindLabel(ev.Kind)).Inc()
	if ev.Kind == engine.EventTrade {
		m.tradesTotal.Inc()
	}
}

// ObserveRejectedOrder records a programmer-error order rejection.
func (m *Metrics) ObserveRejectedOrder() {
	m.ordersRejected.Inc()
}

// ObserveTickDuration records how long one tick took, in seconds.
func (m *Metrics) ObserveTickDuration(seconds float64) {
	m.tickDuration.Observe(seconds)
}

func eventKindLabel(kind engine.EventKind) string {
	switch kind {
	case engine.EventOrderPlaced:
		return "order_placed"
	case engine.EventOrderCancelled:
		return "order_cancelled"
	case engine.EventTrade:
		return "trade"
	case engine.EventBookSnapshot:
		return "book_snapshot"
	default:
		return "unknown"
	}
}
