// Package metrics exposes pipeline counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrissnell/sensorpipe/internal/engine"
)

const namespace = "sensorpipe"

// Run statuses
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	filesTotal       *prometheus.CounterVec
	readingsIngested prometheus.Counter
	readingsDropped  *prometheus.CounterVec
	readingsStored   prometheus.Counter
	corrected        *prometheus.CounterVec
	anomalous        *prometheus.CounterVec
	degenerateGroups *prometheus.CounterVec
	sinkErrors       *prometheus.CounterVec
	lastSuccess      prometheus.Gauge
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		filesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Raw files seen by ingestion, by result.",
		}, []string{"result"}),
		readingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Rows read from raw files.",
		}),
		readingsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_dropped_total",
			Help:      "Rows removed before enrichment, by reason.",
		}, []string{"reason"}),
		readingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_processed_total",
			Help:      "Enriched rows handed to storage.",
		}),
		corrected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outliers_corrected_total",
			Help:      "Values replaced by their group mean.",
		}, []string{"reading_type"}),
		anomalous: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalous_readings_total",
			Help:      "Calibrated values outside the expected range.",
		}, []string{"reading_type"}),
		degenerateGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degenerate_groups_total",
			Help:      "Reading type groups skipped by outlier correction.",
		}, []string{"reading_type"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed batch writes by sink.",
		}, []string{"sink"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsTotal,
		m.runDuration,
		m.filesTotal,
		m.readingsIngested,
		m.readingsDropped,
		m.readingsStored,
		m.corrected,
		m.anomalous,
		m.degenerateGroups,
		m.sinkErrors,
		m.lastSuccess,
	)

	return m
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests and embedding
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records the outcome and duration of a run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	if status != StatusFailed {
		m.lastSuccess.SetToCurrentTime()
	}
}

// ObserveFiles counts ingested and failed files.
func (m *Metrics) ObserveFiles(ok, failed, rows int) {
	m.filesTotal.WithLabelValues("ok").Add(float64(ok))
	m.filesTotal.WithLabelValues("failed").Add(float64(failed))
	m.readingsIngested.Add(float64(rows))
}

// ObserveResult records the engine counters of a run.
func (m *Metrics) ObserveResult(r *engine.Result) {
	m.readingsDropped.WithLabelValues("duplicate").Add(float64(r.Stats.Duplicates))
	m.readingsDropped.WithLabelValues("missing").Add(float64(r.Stats.DroppedMissing))
	m.readingsStored.Add(float64(r.Stats.OutputRows))
	for t, n := range r.Stats.Corrected {
		m.corrected.WithLabelValues(t).Add(float64(n))
	}
	for t, n := range r.Stats.Anomalous {
		m.anomalous.WithLabelValues(t).Add(float64(n))
	}
	for _, w := range r.Warnings {
		m.degenerateGroups.WithLabelValues(w.ReadingType).Inc()
	}
}

func (m *Metrics) SinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}
