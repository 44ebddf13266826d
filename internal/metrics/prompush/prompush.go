// Package prompush pushes export metrics to a Prometheus Pushgateway.
//
// An export is a short-lived batch job with nothing to scrape, so samples
// accumulate in a private registry and are pushed once when the CLI flushes
// on exit. The job name is the Pushgateway grouping key, so it is not
// repeated as a label.
package prompush

import (
	"fmt"

	"pgexport/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Pushgateway implementation of metrics.Backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec
	stepDuration  *prometheus.SummaryVec
	recordCounter *prometheus.CounterVec
	batchCounter  prometheus.Counter

	counters   map[string]func(delta float64, l metrics.Labels)
	histograms map[string]func(v float64, l metrics.Labels)
}

// NewBackend builds a Backend pushing to gatewayURL under jobName. An empty
// jobName becomes "pgexport".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "pgexport"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Export steps by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Export step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records written to the export file, by kind.",
		}, []string{"kind"}),
		batchCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Cursor batches fetched.",
		}),
	}

	for name, col := range map[string]prometheus.Collector{
		"step counter":   b.stepCounter,
		"step summary":   b.stepDuration,
		"record counter": b.recordCounter,
		"batch counter":  b.batchCounter,
	} {
		if err := b.reg.Register(col); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	b.counters = map[string]func(float64, metrics.Labels){
		metrics.StepTotal: func(d float64, l metrics.Labels) {
			b.stepCounter.WithLabelValues(l["step"], l["status"]).Add(d)
		},
		metrics.RecordsTotal: func(d float64, l metrics.Labels) {
			b.recordCounter.WithLabelValues(l["kind"]).Add(d)
		},
		metrics.BatchesTotal: func(d float64, _ metrics.Labels) {
			b.batchCounter.Add(d)
		},
	}
	b.histograms = map[string]func(float64, metrics.Labels){
		metrics.StepDurationSeconds: func(v float64, l metrics.Labels) {
			b.stepDuration.WithLabelValues(l["step"], l["status"]).Observe(v)
		},
	}
	return b, nil
}

// IncCounter adds delta to a known counter. Unknown names are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if f, ok := b.counters[name]; ok {
		f(delta, labels)
	}
}

// ObserveHistogram records v in a known summary. Unknown names are dropped.
func (b *Backend) ObserveHistogram(name string, v float64, labels metrics.Labels) {
	if f, ok := b.histograms[name]; ok {
		f(v, labels)
	}
}

// Flush pushes the registry, replacing the job's previous group.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push()
}
