package quote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/buger/jsonparser"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantage reads the GLOBAL_QUOTE function.
type AlphaVantage struct {
	http    Getter
	baseURL string
	apiKey  string
}

func NewAlphaVantage(get Getter, apiKey string) *AlphaVantage {
	if apiKey == "" {
		apiKey = "demo"
	}
	return &AlphaVantage{http: get, baseURL: alphaVantageBaseURL, apiKey: apiKey}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

func (a *AlphaVantage) Attempt(ctx context.Context, symbol string) (float64, error) {
	body, err := a.http.Get(ctx, fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		a.baseURL, url.QueryEscape(symbol), url.QueryEscape(a.apiKey)))
	if err != nil {
		return 0, newError(a.Name(), symbol, KindNetwork, err)
	}

	// Throttled and demo-key responses carry a note instead of a quote.
	for _, key := range []string{"Note", "Information", "Error Message"} {
		if msg, err := jsonparser.GetString(body, key); err == nil && msg != "" {
			return 0, newError(a.Name(), symbol, KindNoData, fmt.Errorf("%s", msg))
		}
	}

	price, kind, err := numberField(body, "Global Quote", "05. price")
	if err != nil {
		return 0, newError(a.Name(), symbol, kind, err)
	}
	return price, nil
}
