// Package metrics defines the Prometheus instruments for the hub and the
// change watcher. All recording methods are safe on a nil *Metrics so
// components can run without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagewatch"

// Broadcast scopes used as the "scope" label value.
const (
	ScopeAll    = "all"
	ScopeOthers = "others"
)

// Metrics holds the instruments recorded by the hub and the notifier.
type Metrics struct {
	ConnectedClients prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	Broadcasts       *prometheus.CounterVec
	SendFailures     prometheus.Counter
	FileChanges      prometheus.Counter
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connected_clients",
			Help:      "Number of live-update clients currently connected.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connections_total",
			Help:      "Total number of live-update connections accepted.",
		}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts by scope.",
		}, []string{"scope"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "send_failures_total",
			Help:      "Total number of per-client sends that failed during a broadcast.",
		}),
		FileChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "file_changes_total",
			Help:      "Total number of qualifying file change events.",
		}),
	}

	reg.MustRegister(m.ConnectedClients, m.ConnectionsTotal, m.Broadcasts, m.SendFailures, m.FileChanges)
	return m
}

// ClientConnected records a newly registered client.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.ConnectedClients.Inc()
	m.ConnectionsTotal.Inc()
}

// ClientDisconnected records a client leaving the live set.
func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.ConnectedClients.Dec()
}

// Broadcast records one fan-out and its failed sends.
func (m *Metrics) Broadcast(scope string, failed int) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(scope).Inc()
	if failed > 0 {
		m.SendFailures.Add(float64(failed))
	}
}

// FileChanged records one qualifying file change.
func (m *Metrics) FileChanged() {
	if m == nil {
		return
	}
	m.FileChanges.Inc()
}
