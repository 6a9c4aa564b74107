// Package metrics exposes Prometheus counters for list filtering and
// resolution. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	lines        *prometheus.CounterVec
	matches      *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	queries      *prometheus.CounterVec
	batchLatency prometheus.Histogram
	files        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatelist_lines_total",
				Help: "List lines processed by token type",
			},
			[]string{"type"},
		),
		matches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatelist_matches_total",
				Help: "List entries found in the reference set",
			},
			[]string{"family"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatelist_skipped_total",
				Help: "List entries skipped by reason",
			},
			[]string{"reason"},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatelist_dns_queries_total",
				Help: "Resolver queries by type and outcome",
			},
			[]string{"qtype", "result"},
		),
		batchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gatelist_dns_batch_duration_seconds",
				Help:    "Time to resolve one batch of domains",
				Buckets: prometheus.DefBuckets,
			},
		),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatelist_files_total",
				Help: "Filtered list files by outcome",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.lines, m.matches, m.skipped, m.queries, m.batchLatency, m.files)
	return m
}

func (m *Metrics) Line(kind string) {
	if m == nil {
		return
	}
	m.lines.WithLabelValues(kind).Inc()
}

func (m *Metrics) Match(family string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(family).Inc()
}

func (m *Metrics) Skip(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Query(qtype, result string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(qtype, result).Inc()
}

func (m *Metrics) Batch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchLatency.Observe(d.Seconds())
}

// File counts one filtered file; result is "matched", "clean" or "error".
func (m *Metrics) File(result string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(result).Inc()
}
