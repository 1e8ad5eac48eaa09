// Package metrics exposes Prometheus collectors for the emitter service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "emitter"

// Recorder is the set of hooks the service reports through.
type Recorder interface {
	ObserveEmit(kind string, invocations int)
	SetSubscribers(n int)
	SetEvents(n int)
	JournalDropped()
}

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Emits       *prometheus.CounterVec
	Invocations prometheus.Counter
	Subscribers prometheus.Gauge
	Events      prometheus.Gauge
	Dropped     prometheus.Counter
}

// New registers the emitter collectors, plus the Go and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Emits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emits_total",
			Help:      "Emissions dispatched, by selector kind.",
		}, []string{"kind"}),
		Invocations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_invocations_total",
			Help:      "Listener invocations performed by emissions.",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Subscribers currently registered.",
		}),
		Events: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events",
			Help:      "Event keys currently present in the registry.",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_dropped_total",
			Help:      "Emission records dropped before reaching the journal.",
		}),
	}
}

func (m *Metrics) ObserveEmit(kind string, invocations int) {
	m.Emits.WithLabelValues(kind).Inc()
	m.Invocations.Add(float64(invocations))
}

func (m *Metrics) SetSubscribers(n int) { m.Subscribers.Set(float64(n)) }

func (m *Metrics) SetEvents(n int) { m.Events.Set(float64(n)) }

func (m *Metrics) JournalDropped() { m.Dropped.Inc() }

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveEmit(string, int) {}
func (Nop) SetSubscribers(int)      {}
func (Nop) SetEvents(int)           {}
func (Nop) JournalDropped()         {}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = Nop{}
)
