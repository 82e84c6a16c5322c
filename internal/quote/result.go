package quote

import (
	"errors"
	"fmt"
)

// Result is the outcome of resolving one symbol: either a price with the
// provider that produced it, or a failure reason. Never both.
type Result struct {
	OK       bool    `json:"ok"`
	Price    float64 `json:"price,omitempty"`
	Provider string  `json:"provider,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Success builds a successful result.
func Success(price float64, provider string) Result {
	return Result{OK: true, Price: price, Provider: provider}
}

// Failure builds a failed result.
func Failure(reason string) Result {
	return Result{Reason: reason}
}

// Err returns nil for a success and an error carrying the reason otherwise.
// Exhausted chains unwrap to ErrChainExhausted.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	if r.Reason == ErrChainExhausted.Error() {
		return ErrChainExhausted
	}
	return errors.New(r.Reason)
}

func (r Result) String() string {
	if r.OK {
		return fmt.Sprintf("%g (%s)", r.Price, r.Provider)
	}
	return "failed: " + r.Reason
}
