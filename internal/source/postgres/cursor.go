// Package postgres implements an export source backed by a Postgres
// server-side cursor using pgx v5.
//
// The cursor lives inside a read-only transaction on a dedicated connection:
//
//	BEGIN READ ONLY
//	DECLARE pgexport_cursor NO SCROLL CURSOR FOR SELECT ... WHERE col >= $1
//	FETCH FORWARD <n> FROM pgexport_cursor   -- repeated
//	CLOSE pgexport_cursor; ROLLBACK
//
// so only one batch of rows is ever materialized on the client.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pgexport/internal/source"
)

const cursorName = "pgexport_cursor"

// Dialect is the Postgres flavour of the export query.
var Dialect = source.Dialect{
	Name:        "postgres",
	QuoteIdent:  source.QuoteDouble,
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

// Config holds the Postgres cursor configuration.
type Config struct {
	DSN       string
	Query     source.Query
	Threshold int64
}

// cursorTx is the subset of pgx.Tx the fetcher uses. It lets tests drive the
// cursor protocol without a server.
type cursorTx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Rollback(ctx context.Context) error
}

// connCloser is the subset of *pgx.Conn needed for teardown.
type connCloser interface {
	Close(ctx context.Context) error
}

// Fetcher reads batches from a declared cursor. It implements source.Fetcher.
type Fetcher struct {
	conn connCloser
	tx   cursorTx
	cols []string
}

var _ source.Fetcher = (*Fetcher)(nil)

// Open connects to Postgres, starts a read-only transaction and declares the
// export cursor. On any failure the connection is closed before returning.
func Open(ctx context.Context, cfg Config) (*Fetcher, error) {
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", describe(err))
	}
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("begin: %w", describe(err))
	}
	f, err := declare(ctx, conn, tx, cfg)
	if err != nil {
		_ = tx.Rollback(ctx)
		_ = conn.Close(ctx)
		return nil, err
	}
	return f, nil
}

// declare issues DECLARE CURSOR on tx and returns a ready Fetcher.
func declare(ctx context.Context, conn connCloser, tx cursorTx, cfg Config) (*Fetcher, error) {
	q := "DECLARE " + cursorName + " NO SCROLL CURSOR FOR " + cfg.Query.SQL(Dialect)

	var args []any
	if cfg.Query.HasParam() {
		args = append(args, cfg.Threshold)
	}
	if _, err := tx.Exec(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("declare cursor: %w", describe(err))
	}
	return &Fetcher{conn: conn, tx: tx}, nil
}

// Fetch implements source.Fetcher with FETCH FORWARD n.
func (f *Fetcher) Fetch(ctx context.Context, n int) ([]string, [][]any, error) {
	rows, err := f.tx.Query(ctx, "FETCH FORWARD "+strconv.Itoa(n)+" FROM "+cursorName)
	if err != nil {
		return nil, nil, describe(err)
	}
	defer rows.Close()

	if f.cols == nil {
		fds := rows.FieldDescriptions()
		f.cols = make([]string, len(fds))
		for i, fd := range fds {
			f.cols[i] = fd.Name
		}
	}

	out := make([][]any, 0, n)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, describe(err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, describe(err)
	}
	return f.cols, out, nil
}

// Close closes the cursor, ends the transaction and closes the connection.
// CLOSE and ROLLBACK are best effort: when the transaction is already aborted
// the server discards the cursor anyway. The connection close error is the
// one reported.
func (f *Fetcher) Close(ctx context.Context) error {
	_, _ = f.tx.Exec(ctx, "CLOSE "+cursorName)
	_ = f.tx.Rollback(ctx)
	return f.conn.Close(ctx)
}

// describe appends the SQLSTATE and detail of a server error while keeping
// the original error reachable through errors.As.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return fmt.Errorf("%w (%s; sqlstate %s)", err, pgErr.Detail, pgErr.SQLState())
		}
		return fmt.Errorf("%w (sqlstate %s)", err, pgErr.SQLState())
	}
	return err
}
