package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

const (
	yahooSearchBaseURL = "https://query2.finance.yahoo.com"
	shortNamePath      = "$.quotes[0].shortname"
)

// YahooNames looks up instrument display names through Yahoo's search
// endpoint.
type YahooNames struct {
	http    Getter
	baseURL string
}

func NewYahooNames(get Getter) *YahooNames {
	return &YahooNames{http: get, baseURL: yahooSearchBaseURL}
}

// Name returns the short name of the best search match for symbol.
func (y *YahooNames) Name(ctx context.Context, symbol string) (string, error) {
	body, err := y.http.Get(ctx, y.baseURL+"/v1/finance/search?q="+url.QueryEscape(symbol))
	if err != nil {
		return "", newError("yahoo-search", symbol, KindNetwork, err)
	}

	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		return "", newError("yahoo-search", symbol, KindFormat, fmt.Errorf("invalid search payload: %w", err))
	}
	jval, err := jsonpath.Get(shortNamePath, jobj)
	if err != nil {
		return "", newError("yahoo-search", symbol, KindNoData, err)
	}

	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}

	name, ok := jval.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", newError("yahoo-search", symbol, KindNoData, errors.New("no short name"))
	}
	return strings.TrimSpace(name), nil
}
