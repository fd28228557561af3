package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors emitted by the HTTP layer and by the
// reaction, ingestion and consistency paths. Each process registers its own
// instance.
type Metrics struct {
	Reactions     *prometheus.CounterVec
	Compensations *prometheus.CounterVec
	Ingestions    *prometheus.CounterVec
	Repairs       *prometheus.CounterVec
	Inconsistent  *prometheus.CounterVec
	HTTPRequests  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "reactions_total",
			Help:      "Reaction toggles applied, by kind and resulting transition.",
		}, []string{"kind", "from", "to"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "reaction_compensations_total",
			Help:      "Image writes reverted after the paired user write failed.",
		}, []string{"outcome"}),
		Ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "ingestions_total",
			Help:      "Image creation attempts by outcome.",
		}, []string{"outcome"}),
		Repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "consistency_repairs_total",
			Help:      "Documents rewritten by the consistency worker.",
		}, []string{"entity"}),
		Inconsistent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gallery",
			Name:      "consistency_violations_total",
			Help:      "Invariant violations observed on the read path or by the worker.",
		}, []string{"invariant"}),
		HTTPRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gallery",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	if reg != nil {
		reg.MustRegister(m.Reactions, m.Compensations, m.Ingestions, m.Repairs, m.Inconsistent, m.HTTPRequests)
	}
	return m
}

// NewNop returns unregistered counters, for tests and tools.
func NewNop() *Metrics {
	return New(nil)
}
