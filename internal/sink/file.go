// Package sink implements the export destination: a local file that is
// created or truncated at the start of a run, written through a buffer, and
// flushed and closed exactly once whether the run succeeds or fails.
//
// Every byte accepted by the sink also feeds an xxh3 hash, so a run can report
// a checksum of exactly what reached the file.
package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/zeebo/xxh3"
)

const defaultBufferSize = 256 << 10

// Error reports a failed destination operation.
type Error struct {
	Op   string // "create", "write", "flush", "sync" or "close"
	Path string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("sink %s %s: %v", e.Op, e.Path, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Options tunes the file sink.
type Options struct {
	// Sync forces file data to stable storage before close.
	Sync bool

	// BufferSize is the write buffer size in bytes. Zero uses 256 KiB.
	BufferSize int
}

// Stats describes what a sink wrote.
type Stats struct {
	Path         string
	Bytes        int64
	Checksum     uint64 // xxh3-64 of all bytes written
	PreviousSize int64  // size of the file that was truncated, 0 if none
}

// File is a truncating, buffered file destination. It is owned by a single
// writer goroutine and is the only thing allowed to close its handle.
type File struct {
	path string
	f    *os.File
	bw   *bufio.Writer
	h    *xxh3.Hasher
	sync bool

	n        int64
	prevSize int64
	closed   bool
	closeErr error
}

// Create opens path for writing, truncating any existing content.
func Create(ctx context.Context, path string, opts Options) (*File, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var prev int64
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		prev = fi.Size()
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &Error{Op: "create", Path: path, Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &Error{Op: "create", Path: path, Err: err}
	}

	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &File{
		path:     path,
		f:        f,
		bw:       bufio.NewWriterSize(f, size),
		h:        xxh3.New(),
		sync:     opts.Sync,
		prevSize: prev,
	}, nil
}

// Write buffers p. Only bytes accepted by the buffer are hashed and counted.
func (s *File) Write(p []byte) (int, error) {
	if s.closed {
		return 0, &Error{Op: "write", Path: s.path, Err: fs.ErrClosed}
	}
	n, err := s.bw.Write(p)
	s.h.Write(p[:n])
	s.n += int64(n)
	if err != nil {
		return n, &Error{Op: "write", Path: s.path, Err: err}
	}
	return n, nil
}

// Close flushes buffered data, optionally syncs, and closes the file. The
// handle is closed even when the flush fails. Later calls return the first
// result.
func (s *File) Close() error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true

	var err error
	if ferr := s.bw.Flush(); ferr != nil {
		err = &Error{Op: "flush", Path: s.path, Err: ferr}
	}
	if err == nil && s.sync {
		if serr := syncFile(s.f); serr != nil {
			err = &Error{Op: "sync", Path: s.path, Err: serr}
		}
	}
	if cerr := s.f.Close(); cerr != nil && err == nil {
		err = &Error{Op: "close", Path: s.path, Err: cerr}
	}
	s.closeErr = err
	return err
}

// Stats reports what has been written so far.
func (s *File) Stats() Stats {
	return Stats{
		Path:         s.path,
		Bytes:        s.n,
		Checksum:     s.h.Sum64(),
		PreviousSize: s.prevSize,
	}
}
