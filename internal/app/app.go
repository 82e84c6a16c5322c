// Package app assembles the valuation engine from configuration and exposes
// the operations behind the command line.
package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rovshanmuradov/xtbhelper/internal/cache"
	"github.com/rovshanmuradov/xtbhelper/internal/config"
	"github.com/rovshanmuradov/xtbhelper/internal/events"
	"github.com/rovshanmuradov/xtbhelper/internal/export"
	"github.com/rovshanmuradov/xtbhelper/internal/fetcher"
	"github.com/rovshanmuradov/xtbhelper/internal/metrics"
	"github.com/rovshanmuradov/xtbhelper/internal/monitor"
	"github.com/rovshanmuradov/xtbhelper/internal/movers"
	"github.com/rovshanmuradov/xtbhelper/internal/position"
	"github.com/rovshanmuradov/xtbhelper/internal/quote"
	"github.com/rovshanmuradov/xtbhelper/internal/ui/render"
	"go.uber.org/zap"
)

const (
	eventBufferSize = 256
	namesTTL        = 7 * 24 * time.Hour
)

// App owns every long-lived component. Build it with New and release it with
// Close.
type App struct {
	logger   *zap.Logger
	cfg      *config.Config
	bus      *events.Bus
	registry *prometheus.Registry
	metrics  *metrics.Collector
	loader   *position.Loader
	chain    *quote.Chain
	fetcher  *fetcher.QuoteFetcher
	quotes   *monitor.CachedQuotes
	scanner  *movers.Scanner
	names    *quote.YahooNames
	nameMemo *cache.Cache
	shutdown *ShutdownHandler
	now      func() time.Time
}

// Option customizes the components New builds.
type Option func(*options)

type options struct {
	getter quote.Getter
	now    func() time.Time
}

// WithGetter replaces the rate-limited HTTP client used by the providers.
func WithGetter(g quote.Getter) Option {
	return func(o *options) { o.getter = g }
}

// WithNow sets the clock used to resolve month offsets.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.getter == nil {
		o.getter = quote.NewHTTPClient(logger, cfg.RequestTimeout(), cfg.RatePerMinute)
	}
	if o.now == nil {
		o.now = time.Now
	}

	a := &App{
		logger:   logger,
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		loader:   position.NewLoader(logger),
		shutdown: NewShutdownHandler(logger.Named("shutdown"), 0),
		now:      o.now,
	}

	collector, err := metrics.NewCollector(a.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	a.metrics = collector

	a.bus = events.NewBus(logger, eventBufferSize)
	a.shutdown.AddFunc("event_bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return a.bus.Shutdown(ctx)
	})
	subscribeDiagnostics(a.bus, logger.Named("events"))

	providers, err := quote.BuildProviders(logger, cfg.Providers, quote.Dependencies{
		HTTP:            o.getter,
		FinnhubToken:    cfg.FinnhubToken,
		AlphaVantageKey: cfg.AlphaVantageKey,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.chain = quote.NewChain(logger, providers, quote.WithObserver(collector))
	a.fetcher = fetcher.NewQuoteFetcher(logger, a.chain, cfg.Workers, cfg.Pacing())

	store := cache.OpenStore(logger, cfg.Cache.Path)
	a.shutdown.Add("cache_store", store)
	quoteCache := cache.New(logger, store, cfg.Cache.Version, cfg.QuoteTTL(), cache.WithObserver(collector))
	moversCache := cache.New(logger, store, cfg.Cache.Version, cfg.MoversTTL(), cache.WithObserver(collector))

	a.quotes = monitor.NewCachedQuotes(logger, quoteCache, a.fetcher)
	a.names = quote.NewYahooNames(o.getter)
	a.nameMemo = cache.New(logger, store, cfg.Cache.Version, namesTTL, cache.WithObserver(collector))
	a.scanner = movers.NewScanner(logger, quote.NewFinnhub(o.getter, cfg.FinnhubToken), moversCache, movers.Config{
		Exchange: cfg.Movers.Exchange,
		TopN:     cfg.Movers.TopN,
		Workers:  cfg.Workers,
		Pacing:   cfg.Pacing(),
	}, a.bus)

	a.logger.Debug("Application assembled",
		zap.Strings("providers", a.chain.Providers()),
		zap.Int("workers", cfg.Workers),
		zap.String("cache", cfg.Cache.Path))
	return a, nil
}

// Close releases the cache store and drains the event bus.
func (a *App) Close() error {
	return a.shutdown.Shutdown(context.Background())
}

func (a *App) Registry() *prometheus.Registry { return a.registry }

func (a *App) Bus() *events.Bus { return a.bus }

// LoadPositions reads and consolidates the configured positions file.
// Rejected groups are logged and published, never fatal.
func (a *App) LoadPositions() ([]position.Position, error) {
	if a.cfg.PositionsFile == "" {
		return nil, fmt.Errorf("positions_file is not configured")
	}
	rows, err := a.loader.LoadRows(a.cfg.PositionsFile)
	if err != nil {
		return nil, err
	}

	positions := position.Consolidate(rows, a.reject)
	a.logger.Info("Positions consolidated",
		zap.Int("rows", len(rows)),
		zap.Int("positions", len(positions)))
	return positions, nil
}

func (a *App) reject(r position.Rejection) {
	a.logger.Warn("Position rejected",
		zap.String("symbol", r.Symbol),
		zap.String("side", string(r.Side)),
		zap.String("volume", r.Volume.String()),
		zap.String("open_price", r.OpenPrice.String()),
		zap.String("reason", r.Reason))
	events.Publish(a.bus, events.PositionRejectedEvent{
		BaseEvent: events.NewBase(events.PositionRejected),
		Symbol:    r.Symbol,
		Side:      string(r.Side),
		Reason:    r.Reason,
	})
}

// Once values the positions a single time and renders the result to out.
func (a *App) Once(ctx context.Context, out io.Writer) (*monitor.Portfolio, error) {
	positions, err := a.LoadPositions()
	if err != nil {
		return nil, err
	}

	results := a.quotes.Quotes(ctx, position.Symbols(positions))
	p := monitor.Compute(positions, results, time.Now())
	for _, r := range a.renderers(out, false) {
		if err := r.Render(p); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Quote runs the provider chain for each symbol, bypassing the cache.
func (a *App) Quote(ctx context.Context, symbols []string) map[string]quote.Result {
	return a.fetcher.Fetch(ctx, symbols)
}

// Movers scans the configured exchange.
func (a *App) Movers(ctx context.Context) (*movers.Report, error) {
	return a.scanner.Scan(ctx)
}

func (a *App) MoversTopN() int { return a.scanner.TopN() }

// HistoryQuery narrows the closed-trade view.
type HistoryQuery struct {
	// Month, when set, is an offset from the current month (0 current, -1
	// previous). Only trades closed in that month are returned, with a summary.
	Month *int
	// Names looks up instrument names for the returned trades.
	Names bool
}

// History loads the closed-trades export and merges partial fills, then
// applies q. The resulting trades are also written to export_dir when it is
// set. The summary is nil unless q.Month is set.
func (a *App) History(ctx context.Context, q HistoryQuery) ([]position.ClosedTrade, *position.MonthSummary, error) {
	if a.cfg.ClosedTradesFile == "" {
		return nil, nil, fmt.Errorf("closed_trades_file is not configured")
	}
	trades, err := a.loader.LoadClosedTrades(a.cfg.ClosedTradesFile)
	if err != nil {
		return nil, nil, err
	}
	merged := position.MergeNearbyFills(trades)
	a.logger.Info("Closed trades merged",
		zap.Int("trades", len(trades)),
		zap.Int("merged", len(merged)))

	var summary *position.MonthSummary
	if q.Month != nil {
		month := position.MonthStart(a.now(), *q.Month)
		s := position.SummarizeMonth(merged, month)
		summary = &s
		merged = position.FilterByMonth(merged, month)
		a.logger.Debug("Month summary",
			zap.Time("month", month),
			zap.Int("trades", s.Trades),
			zap.String("saldo", s.Saldo.StringFixed(2)))
	}

	if q.Names {
		a.nameTrades(ctx, merged)
	}

	if a.cfg.ExportDir != "" && len(merged) > 0 {
		if _, err := export.NewExporter(a.logger, a.cfg.ExportDir).ExportClosedTrades(merged); err != nil {
			return merged, summary, err
		}
	}
	return merged, summary, nil
}

// nameTrades fills Name on every trade. Names are cached per symbol; a failed
// lookup leaves the symbol as the name.
func (a *App) nameTrades(ctx context.Context, trades []position.ClosedTrade) {
	symbols := make([]string, 0, len(trades))
	for _, t := range trades {
		symbols = append(symbols, t.Symbol)
	}

	batch := fetcher.Batch[string]{Workers: a.cfg.Workers, Pacing: a.cfg.Pacing(), Logger: a.logger}
	names := batch.Run(ctx, symbols, func(ctx context.Context, symbol string) string {
		var name string
		if a.nameMemo.Get(ctx, "name:"+symbol, &name) {
			return name
		}
		name, err := a.names.Name(ctx, symbol)
		if err != nil {
			a.logger.Debug("Name lookup failed", zap.String("symbol", symbol), zap.Error(err))
			return symbol
		}
		a.nameMemo.Set(ctx, "name:"+symbol, name)
		return name
	})

	for i := range trades {
		trades[i].Name = names[trades[i].Symbol]
	}
}

// renderers builds the terminal renderer plus, when export_dir is set, the
// snapshot exporter and the totals journal.
func (a *App) renderers(out io.Writer, clear bool) []monitor.Renderer {
	var opts []render.Option
	if clear {
		opts = append(opts, render.WithClearScreen())
	}
	renderers := []monitor.Renderer{render.NewTerminal(out, opts...)}

	if a.cfg.ExportDir == "" {
		return renderers
	}
	renderers = append(renderers, export.NewExporter(a.logger, a.cfg.ExportDir, export.FormatJSON, export.FormatCSV))

	journal, err := export.OpenJournal(a.logger, filepath.Join(a.cfg.ExportDir, "totals.csv"))
	if err != nil {
		a.logger.Warn("Totals journal disabled", zap.Error(err))
		return renderers
	}
	a.shutdown.Add("journal", journal)
	return append(renderers, journal)
}
