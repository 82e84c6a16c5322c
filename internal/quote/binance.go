package quote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const binanceBaseURL = "https://api.binance.com"

var errNotCrypto = errors.New("not a crypto symbol")

// Binance prices crypto symbols against USDT. Other symbols are unsupported
// and skipped without a request.
type Binance struct {
	http    Getter
	baseURL string
}

func NewBinance(get Getter) *Binance {
	return &Binance{http: get, baseURL: binanceBaseURL}
}

func (b *Binance) Name() string { return "binance" }

// Supports reports whether symbol looks like a crypto pair.
func (b *Binance) Supports(symbol string) bool {
	s := strings.ToUpper(symbol)
	return strings.Contains(s, "BTC") || strings.Contains(s, "ETH") || strings.Contains(s, "USD")
}

func (b *Binance) Attempt(ctx context.Context, symbol string) (float64, error) {
	if !b.Supports(symbol) {
		return 0, newError(b.Name(), symbol, KindUnsupported, errNotCrypto)
	}

	pair := CleanSymbol(symbol) + "USDT"
	body, err := b.http.Get(ctx, fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", b.baseURL, url.QueryEscape(pair)))
	if err != nil {
		return 0, newError(b.Name(), symbol, KindNetwork, err)
	}

	price, kind, err := numberField(body, "price")
	if err != nil {
		return 0, newError(b.Name(), symbol, kind, err)
	}
	return price, nil
}
