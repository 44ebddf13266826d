// Package pipeline wires an export run:
//
//	source.Source ──Next──▶ Flatten ──record──▶ Serialize ──line──▶ Drain ──▶ Sink
//
// Each arrow after the source is an unbuffered channel, so a stage can only
// hand over its next unit once the stage below has taken the previous one.
// A slow sink therefore stalls serialization, which stalls flattening, which
// stops the next cursor fetch: at most about one batch of records is held in
// memory at any time.
package pipeline

import (
	"context"
	"errors"
	"io"

	"pgexport/internal/csvout"
	"pgexport/internal/record"
	"pgexport/internal/source"
)

// Counter tracks how many records and batches passed the flattener during
// one run. It has a single writer (Flatten) and is read by the driver once
// the run is over, so it needs no synchronization.
type Counter struct {
	records int64
	batches int64
}

// Records returns the number of records forwarded.
func (c *Counter) Records() int64 { return c.records }

// Batches returns the number of batches fully forwarded.
func (c *Counter) Batches() int64 { return c.batches }

func (c *Counter) addBatch(n int) {
	c.records += int64(n)
	c.batches++
}

// Sink is the byte destination at the end of the pipeline.
type Sink interface {
	io.Writer
	Close() error
}

// Flatten pulls batches from src and forwards their records one at a time,
// in order, to out. The counter is advanced by the batch length only after
// every record of the batch was accepted downstream. out is closed on return.
func Flatten(ctx context.Context, src source.Source, out chan<- record.Record, c *Counter, onBatch func()) error {
	defer close(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := src.Next(ctx)
		if errors.Is(err, source.ErrEndOfData) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, r := range b {
			select {
			case out <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		c.addBatch(b.Len())
		if onBatch != nil {
			onBatch()
		}
	}
}

// Serialize emits the header line and then one encoded line per record from
// in. The header is sent even when in yields nothing. out is closed on return.
func Serialize(ctx context.Context, enc *csvout.Encoder, in <-chan record.Record, out chan<- []byte) error {
	defer close(out)

	if err := send(ctx, out, enc.Header()); err != nil {
		return err
	}
	for r := range in {
		line, err := enc.Line(r)
		if err != nil {
			return err
		}
		if err := send(ctx, out, line); err != nil {
			return err
		}
	}
	return nil
}

// Drain writes every line from in to dst and closes dst when in is
// exhausted or a write fails. A close failure is reported when nothing else
// went wrong first.
func Drain(dst Sink, in <-chan []byte) (err error) {
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
	}()

	for line := range in {
		if _, err := dst.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func send[T any](ctx context.Context, out chan<- T, v T) error {
	select {
	case out <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
