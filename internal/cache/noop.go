package cache

import (
	"context"
	"time"
)

// Noop is a Cache that stores nothing. Used by the admin CLI, where every
// read should hit the directory store.
type Noop struct{}

func (Noop) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (Noop) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (Noop) Delete(_ context.Context, _ string) error                         { return nil }
func (Noop) Ping(_ context.Context) error                                     { return nil }
func (Noop) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}
