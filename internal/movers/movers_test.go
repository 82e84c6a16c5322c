package movers

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rovshanmuradov/xtbhelper/internal/cache"
	"github.com/rovshanmuradov/xtbhelper/internal/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	mu          sync.Mutex
	listings    []quote.Listing
	listErrs    []error
	listCalls   atomic.Int32
	changes     map[string]float64
	changeCalls atomic.Int32
}

func (f *fakeSource) ExchangeSymbols(context.Context, string) ([]quote.Listing, error) {
	n := int(f.listCalls.Add(1))
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= len(f.listErrs) {
		return nil, f.listErrs[n-1]
	}
	return f.listings, nil
}

func (f *fakeSource) ChangePercent(_ context.Context, symbol string) (float64, error) {
	f.changeCalls.Add(1)
	dp, ok := f.changes[symbol]
	if !ok {
		return 0, errors.New("no quote")
	}
	return dp, nil
}

func newScanner(t *testing.T, src Source) *Scanner {
	c := cache.New(zaptest.NewLogger(t), cache.NewMemoryStore(), "fx_v1", 3*time.Minute)
	return NewScanner(zaptest.NewLogger(t), src, c, Config{Pacing: 0, TopN: 2}, nil)
}

func TestFilterListings(t *testing.T) {
	got := FilterListings([]quote.Listing{
		{Symbol: "BMW", DisplaySymbol: "BMW.DE"},
		{Symbol: "sap.de"},
		{Symbol: "SAP.DE", DisplaySymbol: "SAP.DE"},
		{Symbol: "AAPL", DisplaySymbol: "AAPL"},
		{Symbol: "IFX.DE", DisplaySymbol: "IFX"},
	})
	assert.Equal(t, []string{"BMW.DE", "SAP.DE"}, got)
}

func TestRank(t *testing.T) {
	r := Rank([]Mover{{"A", 1.5}, {"B", -3}, {"C", 7}, {"D", 0}})
	assert.Equal(t, []Mover{{"C", 7}, {"A", 1.5}, {"D", 0}, {"B", -3}}, r.Gainers)
	assert.Equal(t, []Mover{{"B", -3}, {"D", 0}, {"A", 1.5}, {"C", 7}}, r.Losers)

	g, l := r.Top(2)
	assert.Equal(t, []Mover{{"C", 7}, {"A", 1.5}}, g)
	assert.Equal(t, []Mover{{"B", -3}, {"D", 0}}, l)
}

func TestScanner_Scan(t *testing.T) {
	src := &fakeSource{
		listings: []quote.Listing{
			{DisplaySymbol: "SAP.DE"}, {DisplaySymbol: "IFX.DE"}, {DisplaySymbol: "DTE.DE"},
			{DisplaySymbol: "CBK.DE"}, {DisplaySymbol: "NAN.DE"}, {DisplaySymbol: "AAPL"},
		},
		changes: map[string]float64{"SAP.DE": 2.5, "IFX.DE": -1.25, "DTE.DE": 0.4, "NAN.DE": math.NaN()},
	}
	s := newScanner(t, src)

	report, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "XETRA", report.Exchange)
	assert.Equal(t, 5, report.Scanned)
	require.Len(t, report.Gainers, 3, "failed and non-finite quotes skipped")
	assert.Equal(t, "SAP.DE", report.Gainers[0].Symbol)
	assert.Equal(t, "IFX.DE", report.Losers[0].Symbol)
	assert.Equal(t, int32(5), src.changeCalls.Load())

	again, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Gainers, again.Gainers)
	assert.Equal(t, int32(1), src.listCalls.Load())
	assert.Equal(t, int32(5), src.changeCalls.Load(), "second scan served from cache")
}

func TestScanner_ListingRetried(t *testing.T) {
	src := &fakeSource{
		listErrs: []error{errors.New("HTTP 502")},
		listings: []quote.Listing{{DisplaySymbol: "SAP.DE"}},
		changes:  map[string]float64{"SAP.DE": 1},
	}
	s := newScanner(t, src)

	report, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Gainers, 1)
	assert.Equal(t, int32(2), src.listCalls.Load())
}

func TestScanner_ListingFormatErrorIsPermanent(t *testing.T) {
	formatErr := &quote.ProviderError{Provider: "finnhub", Symbol: "XETRA", Kind: quote.KindFormat, Err: errors.New("bad json")}
	src := &fakeSource{listErrs: []error{formatErr, formatErr}}
	s := newScanner(t, src)

	_, err := s.Scan(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), src.listCalls.Load())
	assert.Equal(t, quote.KindFormat, quote.KindOf(err))
}

func TestScanner_EmptyIsValid(t *testing.T) {
	src := &fakeSource{listings: []quote.Listing{{DisplaySymbol: "AAPL"}}}
	s := newScanner(t, src)

	report, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Gainers)
	assert.Empty(t, report.Losers)
	assert.Zero(t, report.Scanned)
}
