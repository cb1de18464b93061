// Package metric holds the Prometheus metrics of the registers service.
//
// A nil *Metrics is valid and records nothing, so components can take
// metrics as an optional dependency.
package metric

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all service metrics.
type Metrics struct {
	// Registry metrics
	CacheLookups  *prometheus.CounterVec
	RegisterInits *prometheus.CounterVec

	// Ingestion metrics
	IngestRuns     *prometheus.CounterVec
	EntriesWritten *prometheus.CounterVec
	IngestDuration *prometheus.HistogramVec

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new, unregistered Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "registers",
				Subsystem: "registry",
				Name:      "lookups_total",
				Help:      "Register cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		RegisterInits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "registers",
				Subsystem: "registry",
				Name:      "inits_total",
				Help:      "Register initialisations by outcome (created, not_found, error)",
			},
			[]string{"outcome"},
		),

		IngestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "registers",
				Subsystem: "ingest",
				Name:      "runs_total",
				Help:      "Ingestion runs by register and outcome",
			},
			[]string{"register", "outcome"},
		),

		EntriesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "registers",
				Subsystem: "ingest",
				Name:      "entries_written_total",
				Help:      "Entries written to new generations",
			},
			[]string{"register"},
		),

		IngestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "registers",
				Subsystem: "ingest",
				Name:      "duration_seconds",
				Help:      "Ingestion run duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"register"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "registers",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CacheLookups,
		m.RegisterInits,
		m.IngestRuns,
		m.EntriesWritten,
		m.IngestDuration,
		m.RequestDuration,
	}
}

// RecordCacheLookup counts a registry lookup.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordRegisterInit counts a register initialisation attempt.
func (m *Metrics) RecordRegisterInit(outcome string) {
	if m == nil {
		return
	}
	m.RegisterInits.WithLabelValues(outcome).Inc()
}

// RecordIngest records the outcome of one ingestion run.
func (m *Metrics) RecordIngest(register, outcome string, entries int, duration time.Duration) {
	if m == nil {
		return
	}
	m.IngestRuns.WithLabelValues(register, outcome).Inc()
	m.IngestDuration.WithLabelValues(register).Observe(duration.Seconds())
	if entries > 0 {
		m.EntriesWritten.WithLabelValues(register).Add(float64(entries))
	}
}

// RecordRequest records an HTTP request.
func (m *Metrics) RecordRequest(route, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, code).Observe(duration.Seconds())
}
