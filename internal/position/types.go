// internal/position/types.go
package position

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalizes a broker "Type" column value.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("unsupported side: %q", s)
	}
}

// Sign returns -1 for SELL and 1 otherwise.
func (s Side) Sign() decimal.Decimal {
	if s == SideSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// RawRow is one original trade line as produced by the ingestion collaborator.
type RawRow struct {
	Symbol      string
	Side        Side
	Volume      decimal.Decimal
	OpenPrice   decimal.Decimal
	MarketPrice *decimal.Decimal // optional
	OpenTime    *time.Time       // optional
}

// Key identifies a consolidated position.
type Key struct {
	Symbol string
	Side   Side
}

func (k Key) String() string {
	return k.Symbol + "_" + string(k.Side)
}

// Position is one netted exposure per (symbol, side). Never mutated after
// Consolidate returns it.
type Position struct {
	Symbol      string           `json:"symbol"`
	Side        Side             `json:"side"`
	Volume      decimal.Decimal  `json:"volume"`
	OpenPrice   decimal.Decimal  `json:"open_price"` // volume weighted
	MarketPrice *decimal.Decimal `json:"market_price,omitempty"`
	OpenTime    *time.Time       `json:"open_time,omitempty"`
}

// Key returns the consolidation key of the position.
func (p Position) Key() Key {
	return Key{Symbol: p.Symbol, Side: p.Side}
}

// Investment is volume * open price.
func (p Position) Investment() decimal.Decimal {
	return p.Volume.Mul(p.OpenPrice)
}

// ClosedTrade is a row of the closed-positions history.
type ClosedTrade struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name,omitempty"`
	Volume     decimal.Decimal `json:"volume"`
	OpenPrice  decimal.Decimal `json:"open_price"`
	ClosePrice decimal.Decimal `json:"close_price"`
	GrossPL    decimal.Decimal `json:"gross_pl"`
	OpenTime   *time.Time      `json:"open_time,omitempty"`
	CloseTime  *time.Time      `json:"close_time,omitempty"`
}
