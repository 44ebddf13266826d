package seed

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeDB struct {
	mu      sync.Mutex
	execs   []string
	rows    [][]any
	copies  int
	failAt  int // 1-based CopyFrom call that fails; 0 never
	execErr error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeDB) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	f.mu.Lock()
	f.copies++
	call := f.copies
	f.mu.Unlock()

	if f.failAt > 0 && call == f.failAt {
		return 0, errors.New("copy failed")
	}
	if !reflect.DeepEqual(table, pgx.Identifier{"products"}) {
		return 0, errors.New("unexpected table")
	}

	var n int64
	for src.Next() {
		v, err := src.Values()
		if err != nil {
			return n, err
		}
		if len(v) != len(columns) {
			return n, errors.New("column count mismatch")
		}
		f.mu.Lock()
		f.rows = append(f.rows, v)
		f.mu.Unlock()
		n++
	}
	return n, src.Err()
}

func TestGenerator_Deterministic(t *testing.T) {
	t.Parallel()

	a := NewGenerator(42).Batch(3, 50)
	b := NewGenerator(42).Batch(3, 50)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed and batch produced different rows")
	}
	if reflect.DeepEqual(a, NewGenerator(42).Batch(4, 50)) {
		t.Fatalf("different batches produced identical rows")
	}
	if reflect.DeepEqual(a, NewGenerator(7).Batch(3, 50)) {
		t.Fatalf("different seeds produced identical rows")
	}
}

func TestGenerator_PriceRange(t *testing.T) {
	t.Parallel()

	for _, p := range NewGenerator(1).Batch(0, 5000) {
		if p.PriceInCents < MinPriceInCents || p.PriceInCents > MaxPriceInCents {
			t.Fatalf("price %d outside [%d, %d]", p.PriceInCents, MinPriceInCents, MaxPriceInCents)
		}
		if p.Name == "" || len(p.Name) > 255 {
			t.Fatalf("bad name %q", p.Name)
		}
	}
}

func TestRun_InsertsTotal(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	var mu sync.Mutex
	var progress []int64

	n, err := Run(context.Background(), db, Options{
		Total: 2500, BatchSize: 1000, Workers: 2, RandSeed: 1,
		OnBatch: func(total int64) {
			mu.Lock()
			progress = append(progress, total)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 2500 || len(db.rows) != 2500 {
		t.Fatalf("inserted = %d (rows %d), want 2500", n, len(db.rows))
	}
	if db.copies != 3 {
		t.Fatalf("copies = %d, want 3", db.copies)
	}
	if len(db.execs) != 2 || !strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS products") || !strings.HasPrefix(db.execs[1], "TRUNCATE") {
		t.Fatalf("execs = %q", db.execs)
	}
	if len(progress) != 3 || progress[len(progress)-1] != 2500 {
		t.Fatalf("progress = %v", progress)
	}
}

func TestRun_ZeroTotal(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	n, err := Run(context.Background(), db, Options{Total: 0, BatchSize: 10, Workers: 1})
	if err != nil || n != 0 || db.copies != 0 {
		t.Fatalf("Run = %d, %v (copies %d), want 0, nil, 0", n, err, db.copies)
	}
	if len(db.execs) != 2 {
		t.Fatalf("execs = %d, want schema and truncate", len(db.execs))
	}
}

func TestRun_CopyFailure(t *testing.T) {
	t.Parallel()

	db := &fakeDB{failAt: 2}
	_, err := Run(context.Background(), db, Options{Total: 50, BatchSize: 10, Workers: 1})
	if err == nil || !strings.Contains(err.Error(), "copy failed") {
		t.Fatalf("err = %v, want copy failure", err)
	}
}

func TestRun_SchemaFailure(t *testing.T) {
	t.Parallel()

	db := &fakeDB{execErr: errors.New("permission denied")}
	if _, err := Run(context.Background(), db, Options{Total: 10, BatchSize: 10, Workers: 1}); err == nil {
		t.Fatalf("Run error = nil, want schema error")
	}
	if db.copies != 0 {
		t.Fatalf("copies = %d after schema failure, want 0", db.copies)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	t.Parallel()

	if _, err := Run(context.Background(), &fakeDB{}, Options{Total: 10}); err == nil {
		t.Fatalf("Run with zero batch size error = nil")
	}
}

// TestIntegration_Seed runs against a live Postgres when TEST_PG_DSN is set.
func TestIntegration_Seed(t *testing.T) {
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer pool.Close()

	n, err := Run(ctx, pool, Options{Total: 1500, BatchSize: 500, Workers: 3, RandSeed: 9})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1500 {
		t.Fatalf("inserted = %d, want 1500", n)
	}

	var count int64
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE price_in_cents BETWEEN 1000 AND 10000`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1500 {
		t.Fatalf("count = %d, want 1500", count)
	}
}
