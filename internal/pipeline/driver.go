package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"pgexport/internal/csvout"
	"pgexport/internal/metrics"
	"pgexport/internal/record"
	"pgexport/internal/sink"
	"pgexport/internal/source"
)

// State is the lifecycle position of a Driver.
type State int32

const (
	Idle State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrAlreadyRun is returned by Run on a driver that has left Idle.
var ErrAlreadyRun = errors.New("pipeline: driver already run")

const (
	defaultCloseTimeout = 10 * time.Second
	defaultJob          = "pgexport"
)

// Progress is a snapshot handed to Options.OnBatch after each batch.
type Progress struct {
	Batches int64
	Records int64
	Elapsed time.Duration
}

// Options configures a Driver. The zero value exports DefaultColumns with
// plain comma-delimited encoding.
type Options struct {
	Columns  []csvout.Column
	Encoding csvout.Options

	// OnBatch, if set, is called from the flattening goroutine after every
	// batch has been forwarded in full.
	OnBatch func(Progress)

	// CloseTimeout bounds releasing the source. It applies even when the
	// run context was canceled. Zero means 10s.
	CloseTimeout time.Duration

	// Job labels emitted metrics. Empty means "pgexport".
	Job string

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Result summarizes a finished run.
type Result struct {
	State    State
	Records  int64
	Batches  int64
	Sink     sink.Stats // zero unless the sink reports stats
	Duration time.Duration

	// ReleaseErr is a failure to release the source. It does not fail a
	// run whose data was written in full.
	ReleaseErr error
}

// statser is implemented by sinks that can describe what they wrote.
type statser interface {
	Stats() sink.Stats
}

// Driver runs one export from a source to a sink. A Driver owns both: the
// sink is closed by the writing stage and the source is released by Run,
// exactly once each, whatever the outcome.
type Driver struct {
	src   source.Source
	dst   Sink
	opts  Options
	state atomic.Int32
}

// NewDriver returns an Idle driver.
func NewDriver(src source.Source, dst Sink, opts Options) *Driver {
	return &Driver{src: src, dst: dst, opts: opts.withDefaults()}
}

func (opts Options) withDefaults() Options {
	if len(opts.Columns) == 0 {
		opts.Columns = csvout.DefaultColumns
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = defaultCloseTimeout
	}
	if opts.Job == "" {
		opts.Job = defaultJob
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// State reports the current lifecycle state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Run streams every record from the source into the sink: header first,
// then one line per record in source order. It returns once all stages have
// stopped, the sink is closed and the source released.
//
// The first stage error wins and cancels the others. Run can be called only
// once; later calls return ErrAlreadyRun.
func (d *Driver) Run(ctx context.Context) (res Result, err error) {
	if !d.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return Result{State: d.State()}, ErrAlreadyRun
	}

	start := d.opts.Now()
	var c Counter

	defer func() {
		res.ReleaseErr = d.release(ctx)
		res.Records = c.Records()
		res.Batches = c.Batches()
		res.Duration = d.opts.Now().Sub(start)
		if s, ok := d.dst.(statser); ok {
			res.Sink = s.Stats()
		}

		res.State = Completed
		if err != nil {
			res.State = Failed
		}
		d.state.Store(int32(res.State))

		metrics.Observe(metrics.Run{
			Job:      d.opts.Job,
			Err:      err,
			Duration: res.Duration,
			Records:  res.Records,
			Batches:  res.Batches,
		})
	}()

	enc, err := csvout.NewEncoder(d.opts.Columns, d.opts.Encoding)
	if err != nil {
		_ = d.dst.Close()
		return res, err
	}

	var onBatch func()
	if d.opts.OnBatch != nil {
		onBatch = func() {
			d.opts.OnBatch(Progress{
				Batches: c.Batches(),
				Records: c.Records(),
				Elapsed: d.opts.Now().Sub(start),
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	recs := make(chan record.Record)
	lines := make(chan []byte)

	g.Go(func() error { return Flatten(gctx, d.src, recs, &c, onBatch) })
	g.Go(func() error { return Serialize(gctx, enc, recs, lines) })
	g.Go(func() error { return Drain(d.dst, lines) })

	err = g.Wait()
	return res, err
}

func (d *Driver) release(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.CloseTimeout)
	defer cancel()
	return d.src.Close(cctx)
}
