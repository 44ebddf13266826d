package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"pgexport/internal/source"
)

// seedProducts creates a products table with n rows priced id*100 cents.
func seedProducts(t *testing.T, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "products.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		price_in_cents INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 1; i <= n; i++ {
		if _, err := db.Exec(
			"INSERT INTO products (name, price_in_cents) VALUES (?, ?)",
			fmt.Sprintf("Produto %d", i), i*100,
		); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return path
}

func TestSource_StreamsFilteredRowsInBatches(t *testing.T) {
	t.Parallel()

	path := seedProducts(t, 25) // prices 100..2500; >= 1000 keeps ids 10..25
	ctx := context.Background()

	src, err := source.New(ctx, source.Config{
		Kind: "sqlite",
		DSN:  path,
		Query: source.Query{
			Table:        "products",
			Columns:      []string{"id", "name"},
			FilterColumn: "price_in_cents",
			OrderBy:      "id",
		},
		Threshold: 1000,
		BatchSize: 5,
	})
	if err != nil {
		t.Fatalf("source.New: %v", err)
	}
	defer src.Close(ctx)

	var sizes []int
	wantID := int64(10)
	for {
		b, err := src.Next(ctx)
		if errors.Is(err, source.ErrEndOfData) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		sizes = append(sizes, b.Len())
		for _, r := range b {
			id, _ := r.Get("id")
			name, _ := r.Get("name")
			if id != wantID {
				t.Fatalf("id = %v (%T), want %d", id, id, wantID)
			}
			if name != fmt.Sprintf("Produto %d", wantID) {
				t.Fatalf("name = %v, want Produto %d", name, wantID)
			}
			wantID++
		}
	}

	if got, want := fmt.Sprint(sizes), "[5 5 5 1]"; got != want {
		t.Fatalf("batch sizes = %s, want %s", got, want)
	}
	if _, err := src.Next(ctx); !errors.Is(err, source.ErrEndOfData) {
		t.Fatalf("Next after end = %v, want ErrEndOfData", err)
	}
}

func TestSource_BadQueryIsOpenError(t *testing.T) {
	t.Parallel()

	path := seedProducts(t, 1)
	_, err := source.New(context.Background(), source.Config{
		Kind:  "sqlite",
		DSN:   path,
		Query: source.Query{Table: "no_such_table", Columns: []string{"id"}},
	})
	var se *source.Error
	if !errors.As(err, &se) || se.Op != "open" {
		t.Fatalf("err = %v, want *source.Error op=open", err)
	}
}

func TestSource_EmptyDSNRejected(t *testing.T) {
	t.Parallel()

	_, err := source.New(context.Background(), source.Config{Kind: "sqlite", DSN: "  "})
	if err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
