// Package telemetry exports the pipeline's Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline Prometheus metrics.
type Metrics struct {
	SegmentsProcessed prometheus.Counter
	SegmentsFailed    prometheus.Counter

	InferenceCalls  *prometheus.CounterVec // labels: phase, outcome
	HandsPersisted  prometheus.Counter
	HandsDeduped    prometheus.Counter
	JobsStalled     prometheus.Counter
	TasksDispatched *prometheus.CounterVec // label: path

	registry *prometheus.Registry
}

// NewMetrics registers all pipeline metrics on a fresh registry so tests
// can create independent instances without duplicate-registration panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		SegmentsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "handreel_segments_processed_total",
			Help: "Total phase-1 segments that completed discovery",
		}),
		SegmentsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "handreel_segments_failed_total",
			Help: "Total phase-1 segments that exhausted inference retries",
		}),
		InferenceCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "handreel_inference_calls_total",
			Help: "Total AI inference calls by phase and outcome",
		}, []string{"phase", "outcome"}),
		HandsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "handreel_hands_persisted_total",
			Help: "Total detailed hand records written",
		}),
		HandsDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "handreel_hands_deduplicated_total",
			Help: "Total phase-2 hands skipped or removed as near-duplicates",
		}),
		JobsStalled: factory.NewCounter(prometheus.CounterOpts{
			Name: "handreel_jobs_stalled_total",
			Help: "Total jobs force-failed by the stall check",
		}),
		TasksDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "handreel_tasks_dispatched_total",
			Help: "Total tasks enqueued by internal path",
		}, []string{"path"}),
		registry: reg,
	}
}

// Handler returns the /metrics endpoint handler for this instance's
// registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
