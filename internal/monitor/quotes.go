package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/rovshanmuradov/xtbhelper/internal/cache"
	"github.com/rovshanmuradov/xtbhelper/internal/quote"
	"go.uber.org/zap"
)

// QuoteSource returns one result per requested symbol.
type QuoteSource interface {
	Quotes(ctx context.Context, symbols []string) map[string]quote.Result
}

// Fetcher resolves a batch of symbols.
type Fetcher interface {
	Fetch(ctx context.Context, symbols []string) map[string]quote.Result
}

// CachedQuotes serves a whole symbol set from the cache when a fresh entry
// exists and otherwise fetches and stores the complete result set, failures
// included.
type CachedQuotes struct {
	cache   *cache.Cache
	fetcher Fetcher
	logger  *zap.Logger
}

func NewCachedQuotes(logger *zap.Logger, c *cache.Cache, f Fetcher) *CachedQuotes {
	return &CachedQuotes{cache: c, fetcher: f, logger: logger.Named("quotes")}
}

func (q *CachedQuotes) Quotes(ctx context.Context, symbols []string) map[string]quote.Result {
	key := SymbolSetKey(symbols)

	var cached map[string]quote.Result
	if q.cache.Get(ctx, key, &cached) {
		q.logger.Debug("Quotes served from cache", zap.Int("symbols", len(cached)))
		return cached
	}

	results := q.fetcher.Fetch(ctx, symbols)
	q.cache.Set(ctx, key, results)
	return results
}

// SymbolSetKey derives a cache key from a symbol set, independent of order
// and duplicates.
func SymbolSetKey(symbols []string) string {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	sorted := make([]string, 0, len(set))
	for s := range set {
		sorted = append(sorted, s)
	}
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return "quotes:" + hex.EncodeToString(sum[:8])
}
