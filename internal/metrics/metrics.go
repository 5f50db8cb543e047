// Package metrics exposes Prometheus metrics for copier runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics recorded by a run.
// A nil *Metrics records nothing.
type Metrics struct {
	SnapshotsMatched  prometheus.Counter     // snapcopier_snapshots_matched_total
	SnapshotsSelected prometheus.Counter     // snapcopier_snapshots_selected_total
	SourceFailures    prometheus.Counter     // snapcopier_source_failures_total
	Copies            *prometheus.CounterVec // snapcopier_copies_total{region,outcome}
	Deletions         *prometheus.CounterVec // snapcopier_deletions_total{region,action,status}

	RunDuration  prometheus.Histogram // snapcopier_run_duration_seconds
	LastRun      prometheus.Gauge     // snapcopier_last_run_timestamp_seconds
	LastRunFails prometheus.Gauge     // snapcopier_last_run_failures
}

// New registers the run metrics with registry, or the default registerer when nil.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		SnapshotsMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapcopier_snapshots_matched_total",
			Help: "Source snapshots matched by any selector",
		}),

		SnapshotsSelected: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapcopier_snapshots_selected_total",
			Help: "Snapshots selected for copying after aggregation",
		}),

		SourceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapcopier_source_failures_total",
			Help: "Source selectors whose listing failed",
		}),

		Copies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snapcopier_copies_total",
			Help: "Copy attempts by target region and outcome",
		}, []string{"region", "outcome"}),

		Deletions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snapcopier_deletions_total",
			Help: "Deletion policy actions by target region, action and status",
		}, []string{"region", "action", "status"}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "snapcopier_run_duration_seconds",
			Help:    "Duration of a full copy run in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "snapcopier_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),

		LastRunFails: factory.NewGauge(prometheus.GaugeOpts{
			Name: "snapcopier_last_run_failures",
			Help: "Failures recorded by the last run",
		}),
	}
}

// RecordMatched adds matched source snapshots.
func (m *Metrics) RecordMatched(n int) {
	if m == nil {
		return
	}
	m.SnapshotsMatched.Add(float64(n))
}

// RecordSelected adds snapshots selected for copying.
func (m *Metrics) RecordSelected(n int) {
	if m == nil {
		return
	}
	m.SnapshotsSelected.Add(float64(n))
}

// RecordSourceFailure counts a failed source listing.
func (m *Metrics) RecordSourceFailure() {
	if m == nil {
		return
	}
	m.SourceFailures.Inc()
}

// RecordCopy counts one copy outcome.
func (m *Metrics) RecordCopy(region, outcome string) {
	if m == nil {
		return
	}
	m.Copies.WithLabelValues(region, outcome).Inc()
}

// RecordDeletion counts one deletion action.
func (m *Metrics) RecordDeletion(region, action string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Deletions.WithLabelValues(region, action, status).Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(duration time.Duration, failures int, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(duration.Seconds())
	m.LastRun.Set(float64(finished.Unix()))
	m.LastRunFails.Set(float64(failures))
}
