// Package metrics collects per-run counters and writes them in the
// node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hh_traits"

// Metrics holds the collectors of a single run. Each run owns its registry,
// so nothing is shared between runs.
type Metrics struct {
	registry *prometheus.Registry

	AdsFetched         prometheus.Counter
	AdsCleaned         prometheus.Counter
	CleaningFailures   prometheus.Counter
	AdsDropped         prometheus.Counter
	SimilarityLookups  prometheus.Counter
	SimilarityFailures prometheus.Counter
	SynonymFailures    prometheus.Counter
	PhaseDuration      *prometheus.GaugeVec
	PhaseItems         *prometheus.GaugeVec
	RunSucceeded       prometheus.Gauge
}

// New registers a fresh set of collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AdsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ads_fetched_total",
			Help:      "Advertisements returned by the source.",
		}),
		AdsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ads_cleaned_total",
			Help:      "Advertisements passed through the cleaner.",
		}),
		CleaningFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleaning_failures_total",
			Help:      "Advertisements whose text could not be cleaned.",
		}),
		AdsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ads_dropped_total",
			Help:      "Advertisements dropped by filters or for having no tokens.",
		}),
		SimilarityLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_lookups_total",
			Help:      "Similarity oracle calls made while scoring.",
		}),
		SimilarityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_failures_total",
			Help:      "Similarity oracle calls that failed and scored zero.",
		}),
		SynonymFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synonym_failures_total",
			Help:      "Keywords whose synonym lookup failed.",
		}),
		PhaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time spent in each pipeline phase.",
		}, []string{"phase"}),
		PhaseItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_items",
			Help:      "Items processed by each progress-reporting step.",
		}, []string{"step"}),
		RunSucceeded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_succeeded",
			Help:      "1 when the last run finished in Done, 0 otherwise.",
		}),
	}

	m.registry.MustRegister(
		m.AdsFetched,
		m.AdsCleaned,
		m.CleaningFailures,
		m.AdsDropped,
		m.SimilarityLookups,
		m.SimilarityFailures,
		m.SynonymFailures,
		m.PhaseDuration,
		m.PhaseItems,
		m.RunSucceeded,
	)

	return m
}

// ObservePhase records how long a phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// ObservePhaseItems matches progress.Observer and records how many items a
// step handled.
func (m *Metrics) ObservePhaseItems(label string, items int64, _ time.Duration) {
	m.PhaseItems.WithLabelValues(label).Set(float64(items))
}

// WriteTextfile dumps every collector to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %q: %w", path, err)
	}
	return nil
}
