package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the server's operational counters. Each server owns its
// own registry so multiple instances (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	activeConnections prometheus.Gauge
	activePresences   prometheus.Gauge
	eventsTotal       *prometheus.CounterVec
	malformedEvents   prometheus.Counter
	dispatchSweeps    prometheus.Counter
	nearbyPushes      prometheus.Counter
	droppedPushes     prometheus.Counter
	authFailures      prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nearcast_active_connections",
			Help: "Live websocket connections.",
		}),
		activePresences: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nearcast_active_presences",
			Help: "Users currently visible in the broadcast pool.",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nearcast_events_total",
			Help: "Inbound websocket events by name.",
		}, []string{"event"}),
		malformedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nearcast_malformed_events_total",
			Help: "Inbound events dropped at the ingress boundary.",
		}),
		dispatchSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nearcast_dispatch_sweeps_total",
			Help: "Recompute-and-push sweeps triggered by state changes.",
		}),
		nearbyPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nearcast_nearby_pushes_total",
			Help: "Nearby sets delivered to client send queues.",
		}),
		droppedPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nearcast_dropped_pushes_total",
			Help: "Nearby sets dropped for slow or closed connections.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nearcast_auth_failures_total",
			Help: "Rejected websocket handshakes.",
		}),
	}
	m.registry.MustRegister(
		m.activeConnections,
		m.activePresences,
		m.eventsTotal,
		m.malformedEvents,
		m.dispatchSweeps,
		m.nearbyPushes,
		m.droppedPushes,
		m.authFailures,
	)
	return m
}

func (m *Metrics) IncConn()                 { m.activeConnections.Inc() }
func (m *Metrics) DecConn()                 { m.activeConnections.Dec() }
func (m *Metrics) SetActivePresences(n int) { m.activePresences.Set(float64(n)) }
func (m *Metrics) IncEvent(event string)    { m.eventsTotal.WithLabelValues(event).Inc() }
func (m *Metrics) IncMalformed()            { m.malformedEvents.Inc() }
func (m *Metrics) IncSweep()                { m.dispatchSweeps.Inc() }
func (m *Metrics) IncPush()                 { m.nearbyPushes.Inc() }
func (m *Metrics) IncDroppedPush()          { m.droppedPushes.Inc() }
func (m *Metrics) IncAuthFailure()          { m.authFailures.Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
