package config

import (
	"fmt"
	"slices"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks a run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block a run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path names the flag.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// maxBatchSize is where a batch stops being "bounded memory" in practice.
const maxBatchSize = 100_000

// Validate lints an export configuration against the registered source
// kinds. It never mutates cfg.
func Validate(cfg *Export, kinds []string) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case strings.TrimSpace(cfg.Kind) == "":
		add(SeverityError, "source", "source kind must not be empty")
	case !slices.Contains(kinds, cfg.Kind):
		add(SeverityError, "source", "unsupported source.kind=%s (registered: %s)", cfg.Kind, strings.Join(kinds, ", "))
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		add(SeverityError, "dsn", "dsn must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		add(SeverityError, "table", "table must not be empty")
	}
	if len(splitList(cfg.Columns)) == 0 {
		add(SeverityError, "columns", "at least one column is required")
	} else if _, err := cfg.OutputColumns(); err != nil {
		add(SeverityError, "headers", "%v", err)
	}
	if strings.TrimSpace(cfg.FilterColumn) == "" {
		add(SeverityWarning, "filter-column", "no filter column; every row of %s is exported", cfg.Table)
	}

	switch {
	case cfg.BatchSize <= 0:
		add(SeverityError, "batch-size", "batch size must be > 0, got %d", cfg.BatchSize)
	case cfg.BatchSize > maxBatchSize:
		add(SeverityWarning, "batch-size", "batch size %d holds that many rows in memory at once", cfg.BatchSize)
	}

	if strings.TrimSpace(cfg.Out) == "" {
		add(SeverityError, "out", "output path must not be empty")
	}
	if strings.TrimSpace(cfg.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it labels metrics and logs")
	}

	switch strings.ToLower(cfg.MetricsBackend) {
	case "", "none":
	case "pushgateway", "prom", "prometheus":
		if cfg.PushgatewayURL == "" {
			add(SeverityError, "pushgateway-url", "pushgateway backend requires a URL")
		}
	case "datadog", "dogstatsd":
		if cfg.StatsdAddr == "" {
			add(SeverityError, "statsd-addr", "datadog backend requires a DogStatsD address")
		}
	default:
		add(SeverityError, "metrics-backend", "unknown metrics backend %q", cfg.MetricsBackend)
	}
	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
