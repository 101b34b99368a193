package metrics

import (
	"net/http"
	"runtime"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "toko"

// Metrics defines our Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	connections    prometheus.Gauge
	events         *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	sendFailures   *prometheus.CounterVec
	droppedEvents  prometheus.Counter
	emitDuration   prometheus.Histogram
	relayMessages  *prometheus.CounterVec
	goroutineGauge prometheus.GaugeFunc
}

// New registers every collector on a private registry so tests can build as many
// instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Catalog events emitted by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Messages handed to connections by room scope.",
		}, []string{"scope"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "send_failures_total",
			Help:      "Messages that could not be handed to a connection.",
		}, []string{"reason"}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "dropped_events_total",
			Help:      "Events discarded because the emitter queue was full.",
		}),
		emitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "emit_duration_seconds",
			Help:      "Time spent fanning one event out to its rooms.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
		relayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Relay bus messages by direction and outcome.",
		}, []string{"direction", "outcome"}),
		goroutineGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "go_routines",
			Help:      "Number of goroutines.",
		}, func() float64 { return float64(runtime.NumGoroutine()) }),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCount,
		m.requestDuration,
		m.connections,
		m.events,
		m.deliveries,
		m.sendFailures,
		m.droppedEvents,
		m.emitDuration,
		m.relayMessages,
		m.goroutineGauge,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	m.requestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) ConnectionOpened() { m.connections.Inc() }
func (m *Metrics) ConnectionClosed() { m.connections.Dec() }

func (m *Metrics) EventEmitted(kind string, seconds float64) {
	m.events.WithLabelValues(kind).Inc()
	m.emitDuration.Observe(seconds)
}

func (m *Metrics) Delivered(scope string)   { m.deliveries.WithLabelValues(scope).Inc() }
func (m *Metrics) SendFailed(reason string) { m.sendFailures.WithLabelValues(reason).Inc() }
func (m *Metrics) EventDropped()            { m.droppedEvents.Inc() }
func (m *Metrics) Relayed(direction, outcome string) {
	m.relayMessages.WithLabelValues(direction, outcome).Inc()
}
