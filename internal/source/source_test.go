package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeFetcher serves rows from memory n at a time and counts calls.
type fakeFetcher struct {
	cols    []string
	rows    [][]any
	fetches int
	closes  int
	failAt  int // 1-based fetch number that fails; 0 disables
}

func (f *fakeFetcher) Fetch(_ context.Context, n int) ([]string, [][]any, error) {
	f.fetches++
	if f.failAt > 0 && f.fetches == f.failAt {
		return nil, nil, errors.New("connection reset by peer")
	}
	if n > len(f.rows) {
		n = len(f.rows)
	}
	out := f.rows[:n]
	f.rows = f.rows[n:]
	return f.cols, out, nil
}

func (f *fakeFetcher) Close(context.Context) error {
	f.closes++
	return nil
}

func products(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{int64(i + 1), fmt.Sprintf("Produto %d", i+1)}
	}
	return rows
}

func TestCursor_BatchesInOrderWithShortTail(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{cols: []string{"id", "name"}, rows: products(5)}
	c, err := NewCursor(f, 2)
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}

	ctx := context.Background()
	var sizes []int
	var ids []int64
	for {
		b, err := c.Next(ctx)
		if errors.Is(err, ErrEndOfData) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		sizes = append(sizes, b.Len())
		for _, r := range b {
			v, _ := r.Get("id")
			ids = append(ids, v.(int64))
		}
	}

	if fmt.Sprint(sizes) != "[2 2 1]" {
		t.Fatalf("batch sizes = %v, want [2 2 1]", sizes)
	}
	for i, id := range ids {
		if id != int64(i+1) {
			t.Fatalf("ids = %v, want 1..5 in order", ids)
		}
	}
	// The short tail batch ends the cursor without another round trip.
	if got, want := f.fetches, 3; got != want {
		t.Fatalf("fetches = %d, want %d", got, want)
	}
}

func TestCursor_EndOfDataIsIdempotent(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{cols: []string{"id"}, rows: [][]any{{int64(1)}, {int64(2)}}}
	c, _ := NewCursor(f, 2)
	ctx := context.Background()

	if _, err := c.Next(ctx); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	for i := 0; i < 5; i++ {
		b, err := c.Next(ctx)
		if !errors.Is(err, ErrEndOfData) {
			t.Fatalf("call %d: err = %v, want ErrEndOfData", i, err)
		}
		if b != nil {
			t.Fatalf("call %d: batch = %v, want nil", i, b)
		}
	}
	// Exactly-full final batch costs one empty fetch, then no more.
	if got, want := f.fetches, 2; got != want {
		t.Fatalf("fetches = %d, want %d", got, want)
	}
}

func TestCursor_EmptyResult(t *testing.T) {
	t.Parallel()

	c, _ := NewCursor(&fakeFetcher{}, 500)
	if _, err := c.Next(context.Background()); !errors.Is(err, ErrEndOfData) {
		t.Fatalf("err = %v, want ErrEndOfData", err)
	}
}

func TestCursor_FetchErrorIsStickyAndTyped(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{cols: []string{"id"}, rows: products(10), failAt: 2}
	c, _ := NewCursor(f, 3)
	ctx := context.Background()

	if _, err := c.Next(ctx); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	_, err := c.Next(ctx)
	var se *Error
	if !errors.As(err, &se) || se.Op != "fetch" {
		t.Fatalf("err = %v, want *source.Error op=fetch", err)
	}
	if _, again := c.Next(ctx); again != err {
		t.Fatalf("second Next after failure = %v, want the same error", again)
	}
	if got, want := f.fetches, 2; got != want {
		t.Fatalf("fetches = %d, want %d (no retry)", got, want)
	}
}

func TestCursor_CloseOnce(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	c, _ := NewCursor(f, 1)
	for i := 0; i < 3; i++ {
		if err := c.Close(context.Background()); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	if f.closes != 1 {
		t.Fatalf("backend closes = %d, want 1", f.closes)
	}
}

func TestNewCursor_RejectsBadBatchSize(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1} {
		if _, err := NewCursor(&fakeFetcher{}, n); err == nil {
			t.Fatalf("NewCursor(batch=%d) succeeded, want error", n)
		}
	}
}

func TestQuerySQL(t *testing.T) {
	t.Parallel()

	pg := Dialect{
		Name:        "postgres",
		QuoteIdent:  QuoteDouble,
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}

	tests := []struct {
		name string
		q    Query
		want string
	}{
		{
			name: "threshold",
			q:    Query{Table: "products", Columns: []string{"id", "name"}, FilterColumn: "price_in_cents"},
			want: `SELECT "id", "name" FROM "products" WHERE "price_in_cents" >= $1`,
		},
		{
			name: "qualified and ordered",
			q:    Query{Table: "public.products", Columns: []string{"id"}, FilterColumn: "price_in_cents", OrderBy: "id"},
			want: `SELECT "id" FROM "public"."products" WHERE "price_in_cents" >= $1 ORDER BY "id"`,
		},
		{
			name: "no filter",
			q:    Query{Table: "products", Columns: []string{"na\"me"}},
			want: `SELECT "na""me" FROM "products"`,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.q.SQL(pg); got != tc.want {
				t.Fatalf("SQL() =\n  %s\nwant\n  %s", got, tc.want)
			}
		})
	}
}

func TestNew_UnsupportedKind(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported source.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

func TestRegister_DefaultsBatchSize(t *testing.T) {
	t.Parallel()

	var got int
	Register("fake-defaults", func(_ context.Context, cfg Config) (Source, error) {
		got = cfg.BatchSize
		return NewCursor(&fakeFetcher{}, cfg.BatchSize)
	})

	if _, err := New(context.Background(), Config{Kind: "fake-defaults"}); err != nil {
		t.Fatalf("New: %v", err)
	}
	if got != DefaultBatchSize {
		t.Fatalf("factory saw BatchSize=%d, want %d", got, DefaultBatchSize)
	}

	found := false
	for _, k := range ListKinds() {
		if k == "fake-defaults" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ListKinds() = %v, missing fake-defaults", ListKinds())
	}
}
