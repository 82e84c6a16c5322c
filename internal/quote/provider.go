package quote

import (
	"context"
	"math"
)

// Provider fetches the current price of a symbol from one source. Symbol
// format normalisation happens inside the provider.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, symbol string) (float64, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, symbol string) (float64, error)
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Attempt(ctx context.Context, symbol string) (float64, error) {
	return p.Fn(ctx, symbol)
}

// validPrice reports whether a parsed price is usable.
func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
