package fetcher

import (
	"context"
	"time"

	"github.com/rovshanmuradov/xtbhelper/internal/quote"
	"go.uber.org/zap"
)

// Resolver resolves one symbol to a quote result.
type Resolver interface {
	Resolve(ctx context.Context, symbol string) quote.Result
}

// QuoteFetcher resolves many symbols through a Resolver with bounded
// concurrency.
type QuoteFetcher struct {
	resolver Resolver
	batch    Batch[quote.Result]
	logger   *zap.Logger
}

// NewQuoteFetcher creates a fetcher. Non-positive workers or pacing fall back
// to the defaults.
func NewQuoteFetcher(logger *zap.Logger, resolver Resolver, workers int, pacing time.Duration) *QuoteFetcher {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if pacing < 0 {
		pacing = DefaultPacing
	}
	logger = logger.Named("fetcher")
	return &QuoteFetcher{
		resolver: resolver,
		batch:    Batch[quote.Result]{Workers: workers, Pacing: pacing, Logger: logger},
		logger:   logger,
	}
}

// Fetch resolves every symbol and returns one result per distinct symbol.
func (f *QuoteFetcher) Fetch(ctx context.Context, symbols []string) map[string]quote.Result {
	start := time.Now()
	results := f.batch.Run(ctx, symbols, f.resolver.Resolve)

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	f.logger.Info("Batch fetched",
		zap.Int("symbols", len(results)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))
	return results
}
