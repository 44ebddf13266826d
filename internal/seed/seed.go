// Package seed fills the products table with generated rows so an export
// has something to stream. Rows are loaded with COPY in fixed-size batches
// by a bounded set of workers.
package seed

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Schema creates the products table if it does not exist.
const Schema = `CREATE TABLE IF NOT EXISTS products (
	id SERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	description TEXT,
	price_in_cents INTEGER NOT NULL,
	created_at TIMESTAMPTZ DEFAULT now()
)`

const truncateSQL = `TRUNCATE TABLE products RESTART IDENTITY`

var copyColumns = []string{"name", "description", "price_in_cents"}

// DB is the subset of *pgxpool.Pool the seeder needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Options controls a seeding run.
type Options struct {
	Total     int
	BatchSize int
	Workers   int
	RandSeed  int64

	// OnBatch, if set, receives the running total after each batch. It may
	// be called from several goroutines.
	OnBatch func(inserted int64)
}

// Connect opens a pgx pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxpool: ping: %w", err)
	}
	return pool, nil
}

// Run ensures the schema, empties the table and inserts opts.Total rows.
// It returns the number of rows inserted.
func Run(ctx context.Context, db DB, opts Options) (int64, error) {
	if opts.BatchSize <= 0 || opts.Workers <= 0 || opts.Total < 0 {
		return 0, fmt.Errorf("seed: invalid options %+v", opts)
	}
	if _, err := db.Exec(ctx, Schema); err != nil {
		return 0, fmt.Errorf("seed: create schema: %w", err)
	}
	if _, err := db.Exec(ctx, truncateSQL); err != nil {
		return 0, fmt.Errorf("seed: truncate: %w", err)
	}

	gen := NewGenerator(opts.RandSeed)
	var inserted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, left := 0, opts.Total; left > 0 && gctx.Err() == nil; i, left = i+1, left-opts.BatchSize {
		batch, size := i, min(left, opts.BatchSize)
		g.Go(func() error {
			n, err := copyBatch(gctx, db, gen.Batch(batch, size))
			if err != nil {
				return fmt.Errorf("seed: batch %d: %w", batch, err)
			}
			total := inserted.Add(n)
			if opts.OnBatch != nil {
				opts.OnBatch(total)
			}
			return nil
		})
	}
	err := g.Wait()
	return inserted.Load(), err
}

func copyBatch(ctx context.Context, db DB, rows []Product) (int64, error) {
	return db.CopyFrom(ctx, pgx.Identifier{"products"}, copyColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			p := rows[i]
			return []any{p.Name, p.Description, p.PriceInCents}, nil
		}))
}
