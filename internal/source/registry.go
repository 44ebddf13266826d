package source

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the backend-agnostic description of an export source.
type Config struct {
	Kind      string // registered backend kind, e.g. "postgres"
	DSN       string
	Query     Query
	Threshold int64 // bound as parameter 1 when Query.FilterColumn is set
	BatchSize int
}

// Factory opens a Source for cfg. The returned Source owns the connection.
type Factory func(ctx context.Context, cfg Config) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Backends call it from init;
// registering the same kind again replaces the previous factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Source using the factory registered for cfg.Kind. A zero
// BatchSize is replaced by DefaultBatchSize.
func New(ctx context.Context, cfg Config) (Source, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported source.kind=%s", cfg.Kind)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("source: batch size must be > 0, got %d", cfg.BatchSize)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
