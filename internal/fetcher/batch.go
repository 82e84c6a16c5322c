// internal/fetcher/batch.go
package fetcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers = 8
	DefaultPacing  = 120 * time.Millisecond
)

// Batch runs a function over a set of keys with a fixed number of workers.
// Each worker pauses for Pacing after every item it handles.
type Batch[T any] struct {
	Workers int
	Pacing  time.Duration
	Logger  *zap.Logger
}

// Run calls fn once per distinct key and returns when every key has a result.
// A slow or failing key never stops the other workers: fn is expected to
// encode failures in T. Cancelling ctx shortens the pacing pauses but every
// key is still handed to fn.
func (b Batch[T]) Run(ctx context.Context, keys []string, fn func(ctx context.Context, key string) T) map[string]T {
	unique := dedupe(keys)
	results := make(map[string]T, len(unique))
	if len(unique) == 0 {
		return results
	}

	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(unique) {
		workers = len(unique)
	}

	work := make(chan string, len(unique))
	for _, k := range unique {
		work <- k
	}
	close(work)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for i := 0; i < workers; i++ {
		id := i + 1
		g.Go(func() error {
			handled := 0
			for key := range work {
				v := fn(ctx, key)

				mu.Lock()
				results[key] = v
				mu.Unlock()

				handled++
				b.pause(ctx)
			}
			logger.Debug("Worker finished", zap.Int("worker_id", id), zap.Int("handled", handled))
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (b Batch[T]) pause(ctx context.Context) {
	if b.Pacing <= 0 {
		return
	}
	t := time.NewTimer(b.Pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
