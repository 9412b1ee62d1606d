// Package metrics provides custom Prometheus metrics for the migration pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains all Prometheus metrics related to pipeline phases
// and staged work items.
type PipelineMetrics struct {
	FoldersStaged   prometheus.Counter
	DocsStaged      prometheus.Counter
	FoldersCreated  prometheus.Counter
	FolderErrors    prometheus.Counter
	MovesTotal      *prometheus.CounterVec
	PropertyUpdates *prometheus.CounterVec

	PhaseDuration *prometheus.HistogramVec
	PhaseStatus   *prometheus.GaugeVec

	TrackerTimeouts       prometheus.Gauge
	TrackerRetryExhausted prometheus.Gauge

	registry *prometheus.Registry
}

// NewPipelineMetrics creates a new instance of PipelineMetrics registered on
// the given registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.FoldersStaged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "migration_folders_staged_total",
		Help: "Total number of source folders ingested into the staging store.",
	})
	m.DocsStaged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "migration_docs_staged_total",
		Help: "Total number of documents ingested into the staging store.",
	})
	m.FoldersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "migration_folders_created_total",
		Help: "Total number of destination folders created during preparation.",
	})
	m.FolderErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "migration_folder_errors_total",
		Help: "Total number of folder processing failures.",
	})
	m.MovesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_moves_total",
			Help: "Total number of document move attempts partitioned by outcome.",
		},
		[]string{"status"},
	)
	m.PropertyUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_property_updates_total",
			Help: "Total number of post-move property update calls partitioned by outcome.",
		},
		[]string{"status"},
	)
	m.PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "migration_phase_duration_seconds",
			Help:    "Wall-clock duration of each pipeline phase run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		},
		[]string{"phase"},
	)
	m.PhaseStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "migration_phase_status",
			Help: "Current checkpoint status per phase (0 not started, 1 in progress, 2 completed, 3 failed).",
		},
		[]string{"phase"},
	)
	m.TrackerTimeouts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "migration_tracker_timeouts",
		Help: "Timeout events recorded by the global error tracker.",
	})
	m.TrackerRetryExhausted = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "migration_tracker_retry_exhausted",
		Help: "Retry-exhaustion events recorded by the global error tracker.",
	})
}

// RecordMove records one move attempt.
func (m *PipelineMetrics) RecordMove(success bool) {
	if success {
		m.MovesTotal.WithLabelValues("success").Inc()
	} else {
		m.MovesTotal.WithLabelValues("failed").Inc()
	}
}

// RecordPropertyUpdate records one post-move property update call.
func (m *PipelineMetrics) RecordPropertyUpdate(success bool) {
	if success {
		m.PropertyUpdates.WithLabelValues("success").Inc()
	} else {
		m.PropertyUpdates.WithLabelValues("failed").Inc()
	}
}

// ObservePhaseDuration records the duration of one phase run.
func (m *PipelineMetrics) ObservePhaseDuration(phase string, seconds float64) {
	m.PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// SetPhaseStatus publishes the checkpoint status code for a phase.
func (m *PipelineMetrics) SetPhaseStatus(phase string, status float64) {
	m.PhaseStatus.WithLabelValues(phase).Set(status)
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FoldersStaged.Describe(ch)
	m.DocsStaged.Describe(ch)
	m.FoldersCreated.Describe(ch)
	m.FolderErrors.Describe(ch)
	m.MovesTotal.Describe(ch)
	m.PropertyUpdates.Describe(ch)
	m.PhaseDuration.Describe(ch)
	m.PhaseStatus.Describe(ch)
	m.TrackerTimeouts.Describe(ch)
	m.TrackerRetryExhausted.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FoldersStaged.Collect(ch)
	m.DocsStaged.Collect(ch)
	m.FoldersCreated.Collect(ch)
	m.FolderErrors.Collect(ch)
	m.MovesTotal.Collect(ch)
	m.PropertyUpdates.Collect(ch)
	m.PhaseDuration.Collect(ch)
	m.PhaseStatus.Collect(ch)
	m.TrackerTimeouts.Collect(ch)
	m.TrackerRetryExhausted.Collect(ch)
}
