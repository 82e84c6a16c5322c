// internal/position/consolidate.go
package position

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRejected marks a group that failed the position invariants.
var ErrRejected = errors.New("position rejected")

// Rejection describes a raw row or consolidated group that was dropped.
type Rejection struct {
	Symbol    string
	Side      Side
	Volume    decimal.Decimal
	OpenPrice decimal.Decimal
	Reason    string
}

func (r Rejection) Error() string {
	return fmt.Sprintf("%s %s: %s", r.Symbol, r.Side, r.Reason)
}

// Unwrap lets callers match rejections with errors.Is(err, ErrRejected).
func (r Rejection) Unwrap() error {
	return ErrRejected
}

// RejectFunc receives every row or group filtered out by Consolidate.
type RejectFunc func(Rejection)

type group struct {
	key         Key
	volume      decimal.Decimal
	weighted    decimal.Decimal
	marketPrice *decimal.Decimal
	openTime    *time.Time
}

// Consolidate merges raw rows into one position per (symbol, side).
//
// Volume is summed, the open price is volume weighted, the market price is
// last-write-wins in input order and the open time is the earliest seen.
// Rows with a blank symbol, non-positive volume or non-positive open price
// are passed to report and never reach a group, so the weighted open price
// stays within the group's open price range. Groups failing the same checks
// are reported and left out as well. The output keeps the order in which keys
// first appear.
func Consolidate(rows []RawRow, report RejectFunc) []Position {
	groups := make(map[Key]*group, len(rows))
	order := make([]Key, 0, len(rows))

	for _, row := range rows {
		key := Key{Symbol: strings.TrimSpace(row.Symbol), Side: row.Side}
		if reason := invalidReason(key.Symbol, row.Volume, row.OpenPrice); reason != "" {
			reject(report, key, row.Volume, row.OpenPrice, reason)
			continue
		}

		g, ok := groups[key]
		if !ok {
			g = &group{key: key}
			groups[key] = g
			order = append(order, key)
		}

		g.volume = g.volume.Add(row.Volume)
		g.weighted = g.weighted.Add(row.OpenPrice.Mul(row.Volume))
		if row.MarketPrice != nil {
			mp := *row.MarketPrice
			g.marketPrice = &mp
		}
		if row.OpenTime != nil && (g.openTime == nil || row.OpenTime.Before(*g.openTime)) {
			t := *row.OpenTime
			g.openTime = &t
		}
	}

	positions := make([]Position, 0, len(order))
	for _, key := range order {
		g := groups[key]

		openPrice := decimal.Zero
		if g.volume.IsPositive() {
			openPrice = g.weighted.Div(g.volume)
		}

		if reason := invalidReason(key.Symbol, g.volume, openPrice); reason != "" {
			reject(report, key, g.volume, openPrice, reason)
			continue
		}

		positions = append(positions, Position{
			Symbol:      key.Symbol,
			Side:        key.Side,
			Volume:      g.volume,
			OpenPrice:   openPrice,
			MarketPrice: g.marketPrice,
			OpenTime:    g.openTime,
		})
	}

	return positions
}

// Rows converts positions back into single-row groups.
func Rows(positions []Position) []RawRow {
	rows := make([]RawRow, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, RawRow{
			Symbol:      p.Symbol,
			Side:        p.Side,
			Volume:      p.Volume,
			OpenPrice:   p.OpenPrice,
			MarketPrice: p.MarketPrice,
			OpenTime:    p.OpenTime,
		})
	}
	return rows
}

// Symbols returns the distinct symbols of positions in first-seen order.
func Symbols(positions []Position) []string {
	seen := make(map[string]struct{}, len(positions))
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		symbols = append(symbols, p.Symbol)
	}
	return symbols
}

func reject(report RejectFunc, key Key, volume, openPrice decimal.Decimal, reason string) {
	if report == nil {
		return
	}
	report(Rejection{
		Symbol:    key.Symbol,
		Side:      key.Side,
		Volume:    volume,
		OpenPrice: openPrice,
		Reason:    reason,
	})
}

func invalidReason(symbol string, volume, openPrice decimal.Decimal) string {
	switch {
	case symbol == "":
		return "blank symbol"
	case !volume.IsPositive():
		return "non-positive volume"
	case !openPrice.IsPositive():
		return "non-positive open price"
	}
	return ""
}
