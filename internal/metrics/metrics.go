// Package metrics exposes Prometheus instrumentation for the job pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	jobsCreated    prometheus.Counter
	jobsDeduped    prometheus.Counter
	jobsFinished   *prometheus.CounterVec
	jobsActive     prometheus.Gauge
	itemsCollected prometheus.Counter
	exports        *prometheus.CounterVec
}

// New registers the pipeline metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_jobs_created_total",
			Help: "Analysis jobs accepted for processing.",
		}),
		jobsDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_jobs_deduplicated_total",
			Help: "Create requests that returned an existing active job.",
		}),
		jobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_jobs_finished_total",
			Help: "Analysis jobs that reached a terminal state.",
		}, []string{"status"}),
		jobsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_jobs_active",
			Help: "Jobs currently pending or processing.",
		}),
		itemsCollected: factory.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_items_collected_total",
			Help: "Media items collected across all jobs.",
		}),
		exports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_exports_total",
			Help: "Export artifacts generated.",
		}, []string{"format"}),
	}
}

func (m *Metrics) JobCreated() {
	if m == nil {
		return
	}
	m.jobsCreated.Inc()
	m.jobsActive.Inc()
}

func (m *Metrics) JobDeduplicated() {
	if m == nil {
		return
	}
	m.jobsDeduped.Inc()
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(status).Inc()
	m.jobsActive.Dec()
}

func (m *Metrics) ItemCollected() {
	if m == nil {
		return
	}
	m.itemsCollected.Inc()
}

func (m *Metrics) ExportGenerated(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}
