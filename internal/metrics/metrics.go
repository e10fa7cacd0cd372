// Package metrics holds the Prometheus collectors of a scan.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "logicscan"

// Call outcomes recorded by the dispatcher.
const (
	OutcomeParsed = "parsed"
	OutcomeFailed = "failed"
)

// Attempt results recorded by the dispatcher.
const (
	AttemptOK             = "ok"
	AttemptTransportError = "transport_error"
	AttemptParseError     = "parse_error"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	LLMCalls      *prometheus.CounterVec
	LLMAttempts   *prometheus.CounterVec
	LLMLatency    prometheus.Histogram
	FilesSelected *prometheus.GaugeVec
	Findings      prometheus.Counter
	Scans         *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LLMCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Chunk analyses by final outcome.",
		}, []string{"outcome"}),
		LLMAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Model calls by attempt result, retries included.",
		}, []string{"result"}),
		LLMLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Latency of a single model call.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		FilesSelected: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "files_selected",
			Help:      "Files selected for analysis in the last scan, by tier.",
		}, []string{"tier"}),
		Findings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "findings_total",
			Help:      "Findings reported by the model.",
		}),
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Scan runs by final status.",
		}, []string{"status"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %q: %w", path, err)
	}
	return nil
}
