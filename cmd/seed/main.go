// Command seed creates the products table and fills it with generated rows
// for pgexport to stream.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"pgexport/internal/config"
	"pgexport/internal/seed"
)

func main() {
	cfg, err := config.LoadSeed()
	if err != nil {
		fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := seed.Connect(ctx, cfg.DSN)
	if err != nil {
		fatalf("seed: %v", err)
	}
	defer pool.Close()

	start := time.Now()
	log.Printf("seed: inserting %s products (batch=%d workers=%d)", humanize.Comma(int64(cfg.Total)), cfg.BatchSize, cfg.Workers)

	n, err := seed.Run(ctx, pool, seed.Options{
		Total:     cfg.Total,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		RandSeed:  cfg.RandSeed,
		OnBatch: func(total int64) {
			if cfg.Verbose {
				log.Printf("seed: %s rows", humanize.Comma(total))
			}
		},
	})
	if err != nil {
		pool.Close()
		fatalf("seed: after %s rows: %v", humanize.Comma(n), err)
	}
	log.Printf("seed: inserted %s rows in %s", humanize.Comma(n), time.Since(start).Truncate(time.Millisecond))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
