// Package metrics records export runs against a pluggable backend.
//
// The process-wide backend starts as a no-op, so Observe is always safe to
// call. The CLI installs a Pushgateway or DogStatsD backend with SetBackend
// and calls Flush once before exiting.
package metrics

import (
	"sync/atomic"
	"time"
)

// Series emitted for every observed run.
const (
	StepTotal           = "export_step_total"
	StepDurationSeconds = "export_step_duration_seconds"
	RecordsTotal        = "export_records_total"
	BatchesTotal        = "export_batches_total"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Labels are string key/value pairs attached to a sample.
type Labels map[string]string

// Backend receives samples. Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

type holder struct{ Backend }

var active atomic.Pointer[holder]

func init() { active.Store(&holder{nopBackend{}}) }

// SetBackend installs b process-wide. A nil b is ignored.
func SetBackend(b Backend) {
	if b != nil {
		active.Store(&holder{b})
	}
}

func current() Backend { return active.Load().Backend }

// Flush flushes the installed backend.
func Flush() error { return current().Flush() }

// Run is the outcome of one export step. A run that failed before any
// record moved (source unreachable, output not creatable) is still a Run,
// with zero counts and Err set.
type Run struct {
	Job      string
	Step     string // defaults to "export"
	Err      error
	Duration time.Duration
	Records  int64
	Batches  int64
}

// Status is StatusFailure when Err is set.
func (r Run) Status() string {
	if r.Err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// Observe emits the step counter and duration for r, plus record and batch
// counts when they are positive.
func Observe(r Run) {
	if r.Step == "" {
		r.Step = "export"
	}
	b := current()

	step := Labels{"job": r.Job, "step": r.Step, "status": r.Status()}
	b.IncCounter(StepTotal, 1, step)
	b.ObserveHistogram(StepDurationSeconds, r.Duration.Seconds(), step)

	if r.Records > 0 {
		b.IncCounter(RecordsTotal, float64(r.Records), Labels{"job": r.Job, "kind": "exported"})
	}
	if r.Batches > 0 {
		b.IncCounter(BatchesTotal, float64(r.Batches), Labels{"job": r.Job})
	}
}
