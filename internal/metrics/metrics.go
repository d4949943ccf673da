// Package metrics exposes classification and webhook counters on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskmatch"

const (
	OutcomeExplicit = "explicit"
	OutcomeFuzzy    = "fuzzy"
	OutcomeNoMatch  = "no_match"
	OutcomeFallback = "fallback"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry         *prom.Registry
	classifications  *prom.CounterVec
	events           *prom.CounterVec
	deliveries       *prom.CounterVec
	classifyDuration prom.Histogram
	snapshotNodes    prom.Histogram
}

// New registers all collectors, including the Go and process collectors.
func New() *Metrics {
	registry := prom.NewRegistry()
	m := &Metrics{
		registry: registry,
		classifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classification results by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		events: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "normalized_events_total",
			Help:      "Normalized events produced per inbound event kind.",
		}, []string{"event"}),
		deliveries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by result.",
		}, []string{"result"}),
		classifyDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "classify_duration_seconds",
			Help:      "Time spent classifying one envelope, snapshot fetch included.",
			Buckets:   prom.DefBuckets,
		}),
		snapshotNodes: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_nodes",
			Help:      "Number of task nodes per fetched snapshot.",
			Buckets:   prom.ExponentialBuckets(1, 4, 8),
		}),
	}
	registry.MustRegister(
		m.classifications,
		m.events,
		m.deliveries,
		m.classifyDuration,
		m.snapshotNodes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prom.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveClassification(eventType, outcome string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) ObserveEvents(event string, count int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Add(float64(count))
}

func (m *Metrics) ObserveDelivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveClassifyDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.classifyDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveSnapshot(nodes int) {
	if m == nil {
		return
	}
	m.snapshotNodes.Observe(float64(nodes))
}
