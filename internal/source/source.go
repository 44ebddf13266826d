// Package source defines the read side of an export: a Source hands out
// fixed-size batches of records from a server-side cursor until the result
// set is exhausted.
//
// Backends (Postgres, SQLite, MySQL, MSSQL) implement only the small Fetcher
// contract; Cursor turns any Fetcher into a Source with the batch, terminal
// state and close-once semantics the pipeline relies on.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pgexport/internal/record"
)

// DefaultBatchSize is the number of rows fetched per round trip when the
// configuration does not say otherwise.
const DefaultBatchSize = 500

// ErrEndOfData is returned by Source.Next once the result set is exhausted.
// Every later call returns it again.
var ErrEndOfData = errors.New("source: end of data")

// Source yields batches of records in the query's natural order.
type Source interface {
	// Next returns the next non-empty batch, ErrEndOfData when the cursor is
	// exhausted, or an *Error when the fetch failed.
	Next(ctx context.Context) (record.Batch, error)

	// Close releases the cursor and its connection. Close is safe to call
	// more than once; only the first call reaches the backend.
	Close(ctx context.Context) error
}

// Error reports a failed source operation. It is fatal to the export run:
// a half-consumed cursor cannot be replayed without duplicating or skipping
// rows, so nothing retries it.
type Error struct {
	Op  string // "open", "fetch" or "close"
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("source %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Fetcher is the backend half of a cursor.
type Fetcher interface {
	// Fetch reads up to n rows from the open cursor. It returns the result
	// column names alongside the rows. Fewer than n rows means the cursor
	// has no more data.
	Fetch(ctx context.Context, n int) (columns []string, rows [][]any, err error)

	// Close tears down the cursor and the underlying connection.
	Close(ctx context.Context) error
}

// Cursor adapts a Fetcher to the Source contract.
//
// Cursor is not safe for concurrent Next calls; the pipeline pulls from a
// single goroutine.
type Cursor struct {
	f         Fetcher
	batchSize int

	done bool
	err  error

	closeOnce sync.Once
	closeErr  error
}

var _ Source = (*Cursor)(nil)

// NewCursor wraps f with batch capacity batchSize.
func NewCursor(f Fetcher, batchSize int) (*Cursor, error) {
	if f == nil {
		return nil, fmt.Errorf("source: fetcher must not be nil")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("source: batch size must be > 0, got %d", batchSize)
	}
	return &Cursor{f: f, batchSize: batchSize}, nil
}

// BatchSize reports the configured batch capacity.
func (c *Cursor) BatchSize() int { return c.batchSize }

// Next implements Source.
func (c *Cursor) Next(ctx context.Context) (record.Batch, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.done {
		return nil, ErrEndOfData
	}

	cols, rows, err := c.f.Fetch(ctx, c.batchSize)
	if err != nil {
		c.err = &Error{Op: "fetch", Err: err}
		return nil, c.err
	}
	if len(rows) > c.batchSize {
		c.err = &Error{Op: "fetch", Err: fmt.Errorf("backend returned %d rows for a batch of %d", len(rows), c.batchSize)}
		return nil, c.err
	}

	// A short read means the cursor drained; skip the extra round trip that
	// would only confirm it.
	if len(rows) < c.batchSize {
		c.done = true
	}
	if len(rows) == 0 {
		return nil, ErrEndOfData
	}

	b := make(record.Batch, len(rows))
	for i, vals := range rows {
		b[i] = record.New(cols, vals)
	}
	return b, nil
}

// Close implements Source.
func (c *Cursor) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if err := c.f.Close(ctx); err != nil {
			c.closeErr = &Error{Op: "close", Err: err}
		}
	})
	return c.closeErr
}
