package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable wraps every failure of the backing store. The cache never
// returns it to callers; it only shows up in logs.
var ErrUnavailable = errors.New("cache unavailable")

// Lookup outcomes reported to the Observer.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupStale = "stale"
	LookupError = "error"
)

// Entry is one stored payload.
type Entry struct {
	Key      string
	StoredAt time.Time
	Payload  []byte
}

// Store persists entries by key. Implementations must be safe for concurrent
// use.
type Store interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, e Entry) error
	Close() error
}

// Clock returns the current time.
type Clock func() time.Time

// Observer is told the outcome of every lookup.
type Observer interface {
	ObserveLookup(result string)
}

// Cache is a best-effort TTL cache of JSON-encoded values. Keys are prefixed
// with the version, so bumping it hides every older entry. Entries at or past
// their TTL read as absent and are left in place.
type Cache struct {
	store    Store
	version  string
	ttl      time.Duration
	now      Clock
	observer Observer
	logger   *zap.Logger

	hits   uint64
	misses uint64
	writes uint64
}

// Option configures a Cache.
type Option func(*Cache)

func WithClock(c Clock) Option {
	return func(cache *Cache) { cache.now = c }
}

func WithObserver(o Observer) Option {
	return func(cache *Cache) { cache.observer = o }
}

// New creates a cache over store.
func New(logger *zap.Logger, store Store, version string, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		version: version,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the namespaced store key for key.
func (c *Cache) Key(key string) string {
	return c.version + ":" + key
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get decodes a fresh entry for key into dst and reports whether it did.
// Store errors, stale entries and undecodable payloads all read as a miss.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	e, ok, err := c.store.Load(ctx, c.Key(key))
	switch {
	case err != nil:
		c.logger.Warn("Cache read failed",
			zap.String("key", key),
			zap.Error(fmt.Errorf("%w: %w", ErrUnavailable, err)))
		c.miss(LookupError)
		return false
	case !ok:
		c.miss(LookupMiss)
		return false
	}

	if age := c.now().Sub(e.StoredAt); age >= c.ttl {
		c.logger.Debug("Cache entry stale",
			zap.String("key", key),
			zap.Duration("age", age))
		c.miss(LookupStale)
		return false
	}

	if err := json.Unmarshal(e.Payload, dst); err != nil {
		c.logger.Warn("Cache entry undecodable", zap.String("key", key), zap.Error(err))
		c.miss(LookupError)
		return false
	}

	atomic.AddUint64(&c.hits, 1)
	c.observe(LookupHit)
	return true
}

// Set stores v under key, replacing any previous entry. Failures are logged
// and dropped.
func (c *Cache) Set(ctx context.Context, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Cache value not encodable", zap.String("key", key), zap.Error(err))
		return
	}

	e := Entry{Key: c.Key(key), StoredAt: c.now(), Payload: payload}
	if err := c.store.Save(ctx, e); err != nil {
		c.logger.Warn("Cache write failed",
			zap.String("key", key),
			zap.Error(fmt.Errorf("%w: %w", ErrUnavailable, err)))
		return
	}
	atomic.AddUint64(&c.writes, 1)
}

// Stats returns hit, miss and write counters.
func (c *Cache) Stats() (hits, misses, writes uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses), atomic.LoadUint64(&c.writes)
}

func (c *Cache) miss(result string) {
	atomic.AddUint64(&c.misses, 1)
	c.observe(result)
}

func (c *Cache) observe(result string) {
	if c.observer != nil {
		c.observer.ObserveLookup(result)
	}
}
