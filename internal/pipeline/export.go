package pipeline

import (
	"context"

	"pgexport/internal/metrics"
	"pgexport/internal/sink"
	"pgexport/internal/source"
)

// Plan is everything needed to run one export end to end.
type Plan struct {
	Source  source.Config
	OutPath string
	Sink    sink.Options
	Options
}

// Hooks for tests.
var (
	openSource = source.New
	createSink = func(ctx context.Context, path string, opts sink.Options) (Sink, error) {
		return sink.Create(ctx, path, opts)
	}
)

// Export opens the source, then the sink, and runs a Driver over them. The
// source is opened first so that an unreachable database leaves an existing
// output file untouched. If the sink cannot be created the source is
// released before returning. Runs that fail before the Driver starts are
// still observed as failed export steps.
func Export(ctx context.Context, p Plan) (Result, error) {
	opts := p.Options.withDefaults()
	start := opts.Now()

	failed := func(err, releaseErr error) (Result, error) {
		res := Result{State: Failed, Duration: opts.Now().Sub(start), ReleaseErr: releaseErr}
		metrics.Observe(metrics.Run{Job: opts.Job, Err: err, Duration: res.Duration})
		return res, err
	}

	src, err := openSource(ctx, p.Source)
	if err != nil {
		return failed(err, nil)
	}

	dst, err := createSink(ctx, p.OutPath, p.Sink)
	if err != nil {
		return failed(err, NewDriver(src, nil, opts).release(ctx))
	}

	return NewDriver(src, dst, opts).Run(ctx)
}
