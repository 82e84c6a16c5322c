package quote

import (
	"errors"
	"fmt"
)

// ErrChainExhausted is the failure reason when no provider produced a price.
var ErrChainExhausted = errors.New("all providers exhausted")

// ErrorKind classifies why a provider attempt failed.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindFormat      ErrorKind = "format"
	KindNoData      ErrorKind = "no_data"
	KindUnsupported ErrorKind = "unsupported"
)

// ProviderError is returned by a provider attempt that did not yield a price.
type ProviderError struct {
	Provider string
	Symbol   string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s for %s", e.Provider, e.Kind, e.Symbol)
	}
	return fmt.Sprintf("%s: %s for %s: %v", e.Provider, e.Kind, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newError(provider, symbol string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Symbol: symbol, Kind: kind, Err: err}
}

// KindOf reports the kind of a provider failure. Errors that are not a
// *ProviderError count as network failures.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}
