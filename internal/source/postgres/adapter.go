package postgres

import (
	"context"

	"pgexport/internal/source"
)

// openFetcher is a test hook that points to Open by default.
var openFetcher = func(ctx context.Context, cfg Config) (source.Fetcher, error) {
	return Open(ctx, cfg)
}

// init registers the "postgres" kind with the source factory.
func init() {
	source.Register("postgres", func(ctx context.Context, cfg source.Config) (source.Source, error) {
		f, err := openFetcher(ctx, Config{
			DSN:       cfg.DSN,
			Query:     cfg.Query,
			Threshold: cfg.Threshold,
		})
		if err != nil {
			return nil, &source.Error{Op: "open", Err: err}
		}
		c, err := source.NewCursor(f, cfg.BatchSize)
		if err != nil {
			_ = f.Close(ctx)
			return nil, err
		}
		return c, nil
	})
}
