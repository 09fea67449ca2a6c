// Package observability holds the Prometheus metrics of the library.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes.
const (
	OutcomeStored    = "stored"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	Uploads        *prometheus.CounterVec
	IngestDuration *prometheus.HistogramVec
	FacesDetected  prometheus.Counter
	PeopleMinted   prometheus.Counter
	FacesMatched   prometheus.Counter
	MatchDistance  prometheus.Histogram
	PoolInFlight   prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photos",
			Name:      "uploads_total",
			Help:      "Total number of photo uploads by outcome",
		}, []string{"outcome"}),

		IngestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "photos",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of ingestion stages",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"stage"}),

		FacesDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "photos",
			Name:      "faces_detected_total",
			Help:      "Total number of faces detected in uploaded photos",
		}),

		PeopleMinted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "photos",
			Name:      "people_minted_total",
			Help:      "Total number of people created for unrecognised faces",
		}),

		FacesMatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "photos",
			Name:      "faces_matched_total",
			Help:      "Total number of faces matched to a known person",
		}),

		MatchDistance: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photos",
			Name:      "match_distance",
			Help:      "Embedding distance of accepted matches",
			Buckets:   prometheus.LinearBuckets(0.05, 0.05, 12),
		}),

		PoolInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "photos",
			Name:      "ingest_in_flight",
			Help:      "Number of uploads currently being ingested",
		}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Upload counts an upload with the given outcome.
func (m *Metrics) Upload(outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long an ingestion stage took, in seconds.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.IngestDuration.WithLabelValues(stage).Observe(seconds)
}

// FaceDetected counts detected faces.
func (m *Metrics) FaceDetected(n int) {
	if m == nil {
		return
	}
	m.FacesDetected.Add(float64(n))
}

// PersonMinted counts a person created for an unknown face.
func (m *Metrics) PersonMinted() {
	if m == nil {
		return
	}
	m.PeopleMinted.Inc()
}

// FaceMatched counts a face matched to a known person at distance d.
func (m *Metrics) FaceMatched(d float64) {
	if m == nil {
		return
	}
	m.FacesMatched.Inc()
	m.MatchDistance.Observe(d)
}

// InFlight adjusts the in-flight ingestion gauge by delta.
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.PoolInFlight.Add(delta)
}
