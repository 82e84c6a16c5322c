package quote

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/buger/jsonparser"
)

const (
	yahooBaseURL      = "https://query1.finance.yahoo.com"
	allOriginsBaseURL = "https://api.allorigins.win"
)

// Getter is the HTTP capability providers need.
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

func chartURL(base, symbol string) string {
	return base + "/v8/finance/chart/" + url.PathEscape(symbol)
}

func fetchChart(ctx context.Context, get Getter, provider, symbol, rawURL string) (float64, error) {
	body, err := get.Get(ctx, rawURL)
	if err != nil {
		return 0, newError(provider, symbol, KindNetwork, err)
	}
	price, kind, err := chartPrice(body)
	if err != nil {
		return 0, newError(provider, symbol, kind, err)
	}
	return price, nil
}

// Yahoo reads the chart endpoint directly, using the symbol as given
// (exchange suffixes such as .DE are Yahoo's own format).
type Yahoo struct {
	http    Getter
	baseURL string
}

func NewYahoo(get Getter) *Yahoo {
	return &Yahoo{http: get, baseURL: yahooBaseURL}
}

func (y *Yahoo) Name() string { return "yahoo" }

func (y *Yahoo) Attempt(ctx context.Context, symbol string) (float64, error) {
	return fetchChart(ctx, y.http, y.Name(), symbol, chartURL(y.baseURL, symbol))
}

// YahooProxy fetches the same chart through the allorigins relay, whose
// response wraps the upstream body in a "contents" string.
type YahooProxy struct {
	http     Getter
	proxyURL string
	baseURL  string
}

func NewYahooProxy(get Getter) *YahooProxy {
	return &YahooProxy{http: get, proxyURL: allOriginsBaseURL, baseURL: yahooBaseURL}
}

func (y *YahooProxy) Name() string { return "yahoo-proxy" }

func (y *YahooProxy) Attempt(ctx context.Context, symbol string) (float64, error) {
	target := chartURL(y.baseURL, symbol)
	body, err := y.http.Get(ctx, y.proxyURL+"/get?url="+url.QueryEscape(target))
	if err != nil {
		return 0, newError(y.Name(), symbol, KindNetwork, err)
	}

	contents, err := jsonparser.GetString(body, "contents")
	if err != nil {
		return 0, newError(y.Name(), symbol, KindFormat, fmt.Errorf("proxy payload: %w", err))
	}

	price, kind, err := chartPrice([]byte(contents))
	if err != nil {
		return 0, newError(y.Name(), symbol, kind, err)
	}
	return price, nil
}

// YahooVariants retries the chart endpoint with alternative listings of the
// symbol: Frankfurt (.F), XETRA and the cleaned symbol with a .DE suffix.
// From the chain's point of view it is a single attempt.
type YahooVariants struct {
	http    Getter
	baseURL string
}

func NewYahooVariants(get Getter) *YahooVariants {
	return &YahooVariants{http: get, baseURL: yahooBaseURL}
}

func (y *YahooVariants) Name() string { return "yahoo-variants" }

func (y *YahooVariants) Attempt(ctx context.Context, symbol string) (float64, error) {
	var lastErr error
	tried := 0
	for _, variant := range SymbolVariants(symbol) {
		if ctx.Err() != nil {
			break
		}
		tried++
		price, err := fetchChart(ctx, y.http, y.Name(), variant, chartURL(y.baseURL, variant))
		if err == nil {
			if validPrice(price) {
				return price, nil
			}
			err = fmt.Errorf("unusable price %v for %s", price, variant)
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return 0, newError(y.Name(), symbol, KindNoData, fmt.Errorf("%d variants failed: %w", tried, lastErr))
}

// SymbolVariants lists the alternative Yahoo symbols tried for symbol, without
// duplicates.
func SymbolVariants(symbol string) []string {
	candidates := []string{
		strings.Replace(symbol, ".DE", ".F", 1),
		strings.Replace(symbol, ".DE", ".XETRA", 1),
		CleanSymbol(symbol) + ".DE",
	}

	seen := make(map[string]struct{}, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		variants = append(variants, c)
	}
	return variants
}

// CleanSymbol drops the first slash of a pair symbol and upper-cases it
// (btc/usd -> BTCUSD).
func CleanSymbol(symbol string) string {
	return strings.ToUpper(strings.Replace(symbol, "/", "", 1))
}
