// internal/movers/movers.go
package movers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rovshanmuradov/xtbhelper/internal/cache"
	"github.com/rovshanmuradov/xtbhelper/internal/events"
	"github.com/rovshanmuradov/xtbhelper/internal/fetcher"
	"github.com/rovshanmuradov/xtbhelper/internal/quote"
	"go.uber.org/zap"
)

const (
	DefaultExchange = "XETRA"
	DefaultTopN     = 50
	listingSuffix   = ".DE"
)

// Source is the market data the scan needs.
type Source interface {
	ExchangeSymbols(ctx context.Context, exchange string) ([]quote.Listing, error)
	ChangePercent(ctx context.Context, symbol string) (float64, error)
}

// Mover is one symbol with its daily change.
type Mover struct {
	Symbol        string  `json:"symbol"`
	ChangePercent float64 `json:"change_percent"`
}

// Report holds both rankings over the same scanned set. An empty report is
// valid: the market may be closed or the provider limit reached.
type Report struct {
	Exchange    string    `json:"exchange"`
	GeneratedAt time.Time `json:"generated_at"`
	Scanned     int       `json:"scanned"`
	Gainers     []Mover   `json:"gainers"`
	Losers      []Mover   `json:"losers"`
}

// Top returns the first n gainers and losers.
func (r *Report) Top(n int) (gainers, losers []Mover) {
	return head(r.Gainers, n), head(r.Losers, n)
}

func head(m []Mover, n int) []Mover {
	if n <= 0 || n >= len(m) {
		return m
	}
	return m[:n]
}

// Config tunes a Scanner.
type Config struct {
	Exchange        string
	TopN            int
	Workers         int
	Pacing          time.Duration
	ListingMaxRetry time.Duration
}

// Scanner ranks an exchange's listings by daily change.
type Scanner struct {
	source Source
	cache  *cache.Cache
	cfg    Config
	events events.Publisher
	logger *zap.Logger
}

// NewScanner creates a scanner. The cache holds both the listing and the
// finished report.
func NewScanner(logger *zap.Logger, source Source, c *cache.Cache, cfg Config, pub events.Publisher) *Scanner {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.Workers <= 0 {
		cfg.Workers = fetcher.DefaultWorkers
	}
	if cfg.Pacing < 0 {
		cfg.Pacing = fetcher.DefaultPacing
	}
	if cfg.ListingMaxRetry <= 0 {
		cfg.ListingMaxRetry = 15 * time.Second
	}
	return &Scanner{
		source: source,
		cache:  c,
		cfg:    cfg,
		events: pub,
		logger: logger.Named("movers"),
	}
}

// TopN returns the configured ranking length.
func (s *Scanner) TopN() int { return s.cfg.TopN }

// Scan returns the cached report when fresh, otherwise lists the exchange,
// fetches every change percent and ranks the results.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	reportKey := "movers:" + s.cfg.Exchange

	var cached Report
	if s.cache.Get(ctx, reportKey, &cached) {
		s.logger.Debug("Movers served from cache", zap.String("exchange", s.cfg.Exchange))
		s.publish(&cached, true)
		return &cached, nil
	}

	symbols, err := s.symbols(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Scanning listings", zap.String("exchange", s.cfg.Exchange), zap.Int("symbols", len(symbols)))

	batch := fetcher.Batch[*float64]{Workers: s.cfg.Workers, Pacing: s.cfg.Pacing, Logger: s.logger}
	changes := batch.Run(ctx, symbols, func(ctx context.Context, symbol string) *float64 {
		dp, err := s.source.ChangePercent(ctx, symbol)
		if err != nil || math.IsNaN(dp) || math.IsInf(dp, 0) {
			return nil
		}
		return &dp
	})

	movers := make([]Mover, 0, len(changes))
	for _, sym := range symbols {
		if dp := changes[sym]; dp != nil {
			movers = append(movers, Mover{Symbol: sym, ChangePercent: *dp})
		}
	}

	report := Rank(movers)
	report.Exchange = s.cfg.Exchange
	report.GeneratedAt = time.Now()
	report.Scanned = len(symbols)

	s.cache.Set(ctx, reportKey, report)
	s.publish(report, false)

	s.logger.Info("Movers ranked",
		zap.Int("scanned", len(symbols)),
		zap.Int("quoted", len(movers)))
	return report, nil
}

// Rank orders movers by change: gainers descending, losers ascending. Ties
// keep symbol order.
func Rank(movers []Mover) *Report {
	gainers := make([]Mover, len(movers))
	copy(gainers, movers)
	sort.SliceStable(gainers, func(i, j int) bool { return gainers[i].ChangePercent > gainers[j].ChangePercent })

	losers := make([]Mover, len(movers))
	copy(losers, movers)
	sort.SliceStable(losers, func(i, j int) bool { return losers[i].ChangePercent < losers[j].ChangePercent })

	return &Report{Gainers: gainers, Losers: losers}
}

// FilterListings keeps the upper-cased .DE symbols of a listing, preferring
// the display symbol, without duplicates.
func FilterListings(listings []quote.Listing) []string {
	seen := make(map[string]struct{}, len(listings))
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		sym := l.DisplaySymbol
		if sym == "" {
			sym = l.Symbol
		}
		sym = strings.ToUpper(sym)
		if !strings.HasSuffix(sym, listingSuffix) {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

func (s *Scanner) symbols(ctx context.Context) ([]string, error) {
	key := "symbols:" + s.cfg.Exchange

	var symbols []string
	if s.cache.Get(ctx, key, &symbols) && len(symbols) > 0 {
		return symbols, nil
	}

	notify := func(err error, d time.Duration) {
		s.logger.Warn("Listing download failed, retrying", zap.Error(err), zap.Duration("backoff", d))
	}
	operation := func() ([]quote.Listing, error) {
		listings, err := s.source.ExchangeSymbols(ctx, s.cfg.Exchange)
		if err != nil && quote.KindOf(err) == quote.KindFormat {
			return nil, backoff.Permanent(err)
		}
		return listings, err
	}

	listings, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(s.cfg.ListingMaxRetry),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.cfg.Exchange, err)
	}

	symbols = FilterListings(listings)
	if len(symbols) == 0 {
		s.logger.Warn("Listing has no matching symbols",
			zap.String("exchange", s.cfg.Exchange),
			zap.Int("listings", len(listings)))
		return symbols, nil
	}
	s.cache.Set(ctx, key, symbols)
	return symbols, nil
}

func (s *Scanner) publish(r *Report, cached bool) {
	events.Publish(s.events, events.MoversCompletedEvent{
		BaseEvent: events.NewBase(events.MoversCompleted),
		Exchange:  r.Exchange,
		Scanned:   r.Scanned,
		Gainers:   len(r.Gainers),
		Losers:    len(r.Losers),
		Cached:    cached,
	})
}
