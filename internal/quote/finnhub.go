package quote

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/buger/jsonparser"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// Finnhub reads the quote endpoint. Besides the current price it exposes the
// daily change percent and exchange listings used by the movers scan.
type Finnhub struct {
	http    Getter
	baseURL string
	token   string
}

func NewFinnhub(get Getter, token string) *Finnhub {
	if token == "" {
		token = "demo"
	}
	return &Finnhub{http: get, baseURL: finnhubBaseURL, token: token}
}

func (f *Finnhub) Name() string { return "finnhub" }

func (f *Finnhub) quote(ctx context.Context, symbol string) ([]byte, error) {
	return f.http.Get(ctx, fmt.Sprintf("%s/quote?symbol=%s&token=%s",
		f.baseURL, url.QueryEscape(symbol), url.QueryEscape(f.token)))
}

// Attempt returns the current price (field c). Finnhub answers unknown
// symbols with zeros, which the chain treats as no data.
func (f *Finnhub) Attempt(ctx context.Context, symbol string) (float64, error) {
	body, err := f.quote(ctx, symbol)
	if err != nil {
		return 0, newError(f.Name(), symbol, KindNetwork, err)
	}
	price, kind, err := numberField(body, "c")
	if err != nil {
		return 0, newError(f.Name(), symbol, kind, err)
	}
	if price == 0 {
		return 0, newError(f.Name(), symbol, KindNoData, fmt.Errorf("zero price"))
	}
	return price, nil
}

// ChangePercent returns the daily percent change (field dp).
func (f *Finnhub) ChangePercent(ctx context.Context, symbol string) (float64, error) {
	body, err := f.quote(ctx, symbol)
	if err != nil {
		return 0, newError(f.Name(), symbol, KindNetwork, err)
	}
	dp, kind, err := numberField(body, "dp")
	if err != nil {
		return 0, newError(f.Name(), symbol, kind, err)
	}
	return dp, nil
}

// Listing is one instrument of an exchange listing.
type Listing struct {
	Symbol        string
	DisplaySymbol string
	Description   string
}

// ExchangeSymbols lists every instrument Finnhub knows on exchange.
func (f *Finnhub) ExchangeSymbols(ctx context.Context, exchange string) ([]Listing, error) {
	body, err := f.http.Get(ctx, fmt.Sprintf("%s/stock/symbol?exchange=%s&token=%s",
		f.baseURL, url.QueryEscape(exchange), url.QueryEscape(f.token)))
	if err != nil {
		return nil, newError(f.Name(), exchange, KindNetwork, err)
	}

	var listings []Listing
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.Object {
			return
		}
		symbol, _ := jsonparser.GetString(value, "symbol")
		display, _ := jsonparser.GetString(value, "displaySymbol")
		description, _ := jsonparser.GetString(value, "description")
		listings = append(listings, Listing{
			Symbol:        strings.TrimSpace(symbol),
			DisplaySymbol: strings.TrimSpace(display),
			Description:   description,
		})
	})
	if err != nil {
		return nil, newError(f.Name(), exchange, KindFormat, fmt.Errorf("listing payload: %w", err))
	}
	return listings, nil
}
