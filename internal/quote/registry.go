package quote

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// DefaultProviders is the default priority order. The static provider is
// deliberately absent.
var DefaultProviders = []string{
	"yahoo",
	"yahoo-proxy",
	"finnhub",
	"alphavantage",
	"binance",
	"yahoo-variants",
}

// Dependencies are handed to every provider factory.
type Dependencies struct {
	HTTP            Getter
	FinnhubToken    string
	AlphaVantageKey string
}

// Factory builds a provider.
type Factory func(deps Dependencies) Provider

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates a registry with the built-in providers registered.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    logger.Named("provider_registry"),
	}

	builtins := map[string]Factory{
		"yahoo":          func(d Dependencies) Provider { return NewYahoo(d.HTTP) },
		"yahoo-proxy":    func(d Dependencies) Provider { return NewYahooProxy(d.HTTP) },
		"finnhub":        func(d Dependencies) Provider { return NewFinnhub(d.HTTP, d.FinnhubToken) },
		"alphavantage":   func(d Dependencies) Provider { return NewAlphaVantage(d.HTTP, d.AlphaVantageKey) },
		"binance":        func(d Dependencies) Provider { return NewBinance(d.HTTP) },
		"yahoo-variants": func(d Dependencies) Provider { return NewYahooVariants(d.HTTP) },
		"static":         func(Dependencies) Provider { return NewStatic() },
	}
	for name, f := range builtins {
		r.factories[name] = f
	}
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.factories[name] = f

	r.logger.Debug("Provider registered", zap.String("name", name))
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns all registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates providers in the given order.
func (r *Registry) Build(names []string, deps Dependencies) ([]Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		f, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("provider %s not found", name)
		}
		providers = append(providers, f(deps))
	}

	r.logger.Info("Provider chain built", zap.Strings("order", names))
	return providers, nil
}

// BuildProviders builds the named built-in providers in order.
func BuildProviders(logger *zap.Logger, names []string, deps Dependencies) ([]Provider, error) {
	return NewRegistry(logger).Build(names, deps)
}
