// Package sqlrows implements source.Fetcher on top of database/sql. Drivers
// stream rows from the server as sql.Rows advances, so reading n rows at a
// time keeps client memory bounded to one batch, the same guarantee the
// Postgres cursor gives.
package sqlrows

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pgexport/internal/source"
)

// Config describes a database/sql backed export query.
type Config struct {
	Driver    string // database/sql driver name, e.g. "sqlite"
	DSN       string
	Dialect   source.Dialect
	Query     source.Query
	Threshold int64
}

// Fetcher reads batches from an open *sql.Rows.
type Fetcher struct {
	db   *sql.DB
	rows *sql.Rows
	cols []string
}

var _ source.Fetcher = (*Fetcher)(nil)

// Open opens the database, verifies connectivity and runs the export query.
func Open(ctx context.Context, cfg Config) (*Fetcher, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", cfg.Driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", cfg.Driver, err)
	}

	f, err := FromDB(ctx, db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return f, nil
}

// FromDB runs the export query on an already opened db. The returned Fetcher
// takes ownership of db and closes it in Close.
func FromDB(ctx context.Context, db *sql.DB, cfg Config) (*Fetcher, error) {
	var args []any
	if cfg.Query.HasParam() {
		args = append(args, cfg.Threshold)
	}
	rows, err := db.QueryContext(ctx, cfg.Query.SQL(cfg.Dialect), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", cfg.Dialect.Name, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("%s: columns: %w", cfg.Dialect.Name, err)
	}
	return &Fetcher{db: db, rows: rows, cols: cols}, nil
}

// Fetch implements source.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, n int) ([]string, [][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	out := make([][]any, 0, n)
	for len(out) < n && f.rows.Next() {
		vals := make([]any, len(f.cols))
		ptrs := make([]any, len(f.cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := f.rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			// Text columns come back as []byte from several drivers.
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	if err := f.rows.Err(); err != nil {
		return nil, nil, err
	}
	return f.cols, out, nil
}

// Close closes the result set and the database handle.
func (f *Fetcher) Close(context.Context) error {
	rerr := f.rows.Close()
	if err := f.db.Close(); err != nil {
		return err
	}
	return rerr
}

// Register wires a database/sql driver into the source factory under kind.
// validateDSN, when non-nil, runs before the connection is opened so that
// obviously malformed DSNs fail fast.
func Register(kind, driver string, d source.Dialect, validateDSN func(string) error) {
	source.Register(kind, func(ctx context.Context, cfg source.Config) (source.Source, error) {
		if validateDSN != nil {
			if err := validateDSN(cfg.DSN); err != nil {
				return nil, &source.Error{Op: "open", Err: fmt.Errorf("%s dsn: %w", kind, err)}
			}
		}
		f, err := Open(ctx, Config{
			Driver:    driver,
			DSN:       cfg.DSN,
			Dialect:   d,
			Query:     cfg.Query,
			Threshold: cfg.Threshold,
		})
		if err != nil {
			return nil, &source.Error{Op: "open", Err: err}
		}
		c, err := source.NewCursor(f, cfg.BatchSize)
		if err != nil {
			_ = f.Close(ctx)
			return nil, err
		}
		return c, nil
	})
}
