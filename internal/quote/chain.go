package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// OutcomeSuccess is the outcome label of an attempt that produced a price.
const OutcomeSuccess = "success"

// Observer receives one call per provider attempt. The outcome is
// OutcomeSuccess or the ErrorKind of the failure.
type Observer interface {
	ObserveAttempt(provider, outcome string, elapsed time.Duration)
}

// Chain resolves a symbol by trying providers strictly in order.
type Chain struct {
	providers []Provider
	observer  Observer
	logger    *zap.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithObserver attaches an attempt observer, typically the metrics collector.
func WithObserver(o Observer) ChainOption {
	return func(c *Chain) { c.observer = o }
}

// NewChain builds a chain over providers in priority order.
func NewChain(logger *zap.Logger, providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers: providers,
		logger:    logger.Named("chain"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns the provider names in priority order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve returns the first successful price for symbol. Later providers are
// not invoked once one succeeds. A failed provider is never retried here.
// When every provider fails the result is a failure with ErrChainExhausted as
// its reason; Resolve itself never returns an error.
func (c *Chain) Resolve(ctx context.Context, symbol string) Result {
	for i, p := range c.providers {
		start := time.Now()
		price, err := c.attempt(ctx, p, symbol)
		elapsed := time.Since(start)

		if err == nil {
			c.observe(p.Name(), OutcomeSuccess, elapsed)
			c.logger.Debug("Price resolved",
				zap.String("symbol", symbol),
				zap.String("provider", p.Name()),
				zap.Float64("price", price),
				zap.Int("attempt", i+1),
				zap.Duration("elapsed", elapsed))
			return Success(price, p.Name())
		}

		kind := KindOf(err)
		c.observe(p.Name(), string(kind), elapsed)

		if kind == KindUnsupported {
			c.logger.Debug("Provider does not support symbol",
				zap.String("symbol", symbol),
				zap.String("provider", p.Name()))
			continue
		}
		c.logger.Warn("Provider attempt failed",
			zap.String("symbol", symbol),
			zap.String("provider", p.Name()),
			zap.String("kind", string(kind)),
			zap.Int("attempt", i+1),
			zap.Int("of", len(c.providers)),
			zap.Error(err))
	}

	c.logger.Error("All providers failed", zap.String("symbol", symbol))
	return Failure(ErrChainExhausted.Error())
}

// attempt contains a single provider call: panics become format errors and
// non-positive or non-finite prices become no_data errors.
func (c *Chain) attempt(ctx context.Context, p Provider, symbol string) (price float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(p.Name(), symbol, KindFormat, fmt.Errorf("panic: %v", r))
		}
	}()

	price, err = p.Attempt(ctx, symbol)
	if err != nil {
		var pe *ProviderError
		if !errors.As(err, &pe) {
			err = newError(p.Name(), symbol, KindNetwork, err)
		}
		return 0, err
	}
	if !validPrice(price) {
		return 0, newError(p.Name(), symbol, KindNoData, fmt.Errorf("unusable price %v", price))
	}
	return price, nil
}

func (c *Chain) observe(provider, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveAttempt(provider, outcome, elapsed)
	}
}
