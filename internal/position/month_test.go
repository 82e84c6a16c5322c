package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthStart(t *testing.T) {
	now := time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), MonthStart(now, 0))
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), MonthStart(now, -1))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), MonthStart(now, 2))
}

func TestFilterByMonth(t *testing.T) {
	trades := []ClosedTrade{
		{Symbol: "APR", CloseTime: tp("2024-04-30T23:59:59Z")},
		{Symbol: "MAY1", CloseTime: tp("2024-05-01T00:00:00Z")},
		{Symbol: "NONE"},
		{Symbol: "MAY31", CloseTime: tp("2024-05-31T23:59:59Z")},
		{Symbol: "JUN", CloseTime: tp("2024-06-01T00:00:00Z")},
	}

	got := FilterByMonth(trades, *tp("2024-05-17T08:00:00Z"))
	require.Len(t, got, 2)
	assert.Equal(t, "MAY1", got[0].Symbol)
	assert.Equal(t, "MAY31", got[1].Symbol)
}

func TestSummarizeMonth(t *testing.T) {
	trades := []ClosedTrade{
		// cost 1000, +10 %
		{Symbol: "SAP.DE", Volume: d("10"), OpenPrice: d("100"), ClosePrice: d("110"), GrossPL: d("100"), CloseTime: tp("2024-05-02T10:00:00Z")},
		// cost 3000, -5 %
		{Symbol: "IFX.DE", Volume: d("100"), OpenPrice: d("30"), ClosePrice: d("28.5"), GrossPL: d("-150"), CloseTime: tp("2024-05-20T15:30:00Z")},
		{Symbol: "DTE.DE", Volume: d("1"), OpenPrice: d("20"), ClosePrice: d("25"), GrossPL: d("5"), CloseTime: tp("2024-06-03T09:00:00Z")},
	}

	s := SummarizeMonth(trades, *tp("2024-05-01T00:00:00Z"))
	assert.Equal(t, 2, s.Trades)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), s.Month)
	// 10*110 + 100*28.5
	assert.True(t, d("3950").Equal(s.Turnover), "turnover %s", s.Turnover)
	assert.True(t, d("-50").Equal(s.Saldo), "saldo %s", s.Saldo)
	// (1000*10 + 3000*-5) / 4000 = -1.25
	assert.True(t, d("-1.25").Equal(s.AvgPercent), "avg %s", s.AvgPercent)
}

func TestWeightedReturn_SkipsZeroOpenPrice(t *testing.T) {
	trades := []ClosedTrade{
		{Volume: d("3"), OpenPrice: d("0"), GrossPL: d("999")},
		{Volume: d("3"), OpenPrice: d("10"), GrossPL: d("1")},
	}
	// 1 / 30 * 100 = 3.333...
	assert.True(t, d("3.33").Equal(WeightedReturn(trades)), "%s", WeightedReturn(trades))
	assert.True(t, WeightedReturn(nil).IsZero())
}
