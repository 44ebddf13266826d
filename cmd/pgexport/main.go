// Command pgexport streams the rows of a table that pass a threshold filter
// into a CSV file, one cursor batch at a time.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"pgexport/internal/config"
	"pgexport/internal/csvout"
	"pgexport/internal/metrics"
	"pgexport/internal/metrics/datadog"
	"pgexport/internal/metrics/prompush"
	"pgexport/internal/pipeline"
	"pgexport/internal/sink"
	"pgexport/internal/source"

	// register every source backend; -source picks one.
	_ "pgexport/internal/source/all"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}

	issues := config.Validate(cfg, source.ListKinds())
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid")
		os.Exit(1)
	}
	if cfg.ValidateOnly {
		log.Printf("Configuration is valid")
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		fatalf("export: %v", err)
	}
}

// run performs one export and flushes metrics before returning.
func run(ctx context.Context, cfg *config.Export) error {
	flush := setupMetrics(cfg)
	defer flush()

	cols, err := cfg.OutputColumns()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log.Printf("export: run=%s source=%s table=%s out=%s batch=%d", runID, cfg.Kind, cfg.Table, cfg.Out, cfg.BatchSize)

	plan := pipeline.Plan{
		Source:  cfg.SourceConfig(),
		OutPath: cfg.Out,
		Sink:    sink.Options{Sync: cfg.Sync},
		Options: pipeline.Options{
			Columns:  cols,
			Encoding: csvout.Options{NormalizeNFC: cfg.NFC},
			Job:      cfg.Job,
			OnBatch: func(p pipeline.Progress) {
				if cfg.Verbose {
					log.Printf("export: run=%s batch=%d processed %d in %s", runID, p.Batches, p.Records, p.Elapsed.Truncate(time.Millisecond))
					return
				}
				log.Printf("processed %d", p.Records)
			},
		},
	}

	res, err := pipeline.Export(ctx, plan)
	if res.Sink.PreviousSize > 0 {
		log.Printf("export: run=%s truncated previous %s (%s)", runID, res.Sink.Path, humanize.IBytes(uint64(res.Sink.PreviousSize)))
	}
	if res.ReleaseErr != nil {
		log.Printf("export: run=%s warning: releasing source: %v", runID, res.ReleaseErr)
	}
	if err != nil {
		log.Printf("export: run=%s %s after %s records=%d", runID, res.State, res.Duration.Truncate(time.Millisecond), res.Records)
		return err
	}

	log.Printf("export: run=%s %s records=%s batches=%d bytes=%s xxh3=%016x in %s",
		runID, res.State, humanize.Comma(res.Records), res.Batches,
		humanize.IBytes(uint64(res.Sink.Bytes)), res.Sink.Checksum,
		res.Duration.Truncate(time.Millisecond))
	return nil
}

// setupMetrics installs the configured backend and returns its flush func.
// A backend that fails to initialize leaves metrics disabled.
func setupMetrics(cfg *config.Export) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch name := strings.ToLower(cfg.MetricsBackend); name {
	case "pushgateway", "prom", "prometheus":
		b, err = prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
	case "datadog", "dogstatsd":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.StatsdAddr,
			Namespace:  "pgexport.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
	case "", "none":
		if cfg.Verbose {
			log.Printf("metrics: disabled")
		}
		return func() {}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", cfg.MetricsBackend, err)
		return func() {}
	}

	log.Printf("metrics: backend=%s job=%s", cfg.MetricsBackend, cfg.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
