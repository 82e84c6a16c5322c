// internal/monitor/valuation.go
package monitor

import (
	"time"

	"github.com/rovshanmuradov/xtbhelper/internal/position"
	"github.com/rovshanmuradov/xtbhelper/internal/quote"
	"github.com/shopspring/decimal"
)

// Status of a single valuation row.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

var hundred = decimal.NewFromInt(100)

// Valuation is one position priced at the current market.
type Valuation struct {
	position.Position
	CurrentPrice  *decimal.Decimal `json:"current_price"`
	Profit        *decimal.Decimal `json:"profit"`
	PercentReturn *decimal.Decimal `json:"percent_return"`
	Status        Status           `json:"status"`
	Provider      string           `json:"provider,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}

// Totals aggregate the ok rows of a portfolio only.
type Totals struct {
	TotalProfit          decimal.Decimal `json:"total_profit"`
	TotalInvestment      decimal.Decimal `json:"total_investment"`
	AveragePercentReturn decimal.Decimal `json:"average_percent_return"`
	PositionCount        int             `json:"position_count"`
	Failed               int             `json:"failed"`
	Pending              int             `json:"pending"`
}

// Portfolio is a complete valuation snapshot.
type Portfolio struct {
	CycleID    string      `json:"cycle_id"`
	ValuedAt   time.Time   `json:"valued_at"`
	Valuations []Valuation `json:"valuations"`
	Totals     Totals      `json:"totals"`
}

// Failures returns the rows whose price could not be resolved.
func (p *Portfolio) Failures() []Valuation {
	var out []Valuation
	for _, v := range p.Valuations {
		if v.Status == StatusError {
			out = append(out, v)
		}
	}
	return out
}

// Value prices a single position.
//
//	profit  = (current - open) * volume * (-1 for SELL)
//	percent = (current - open) / open * 100 for BUY, (open - current) / open * 100 for SELL
//
// The percent return is rounded to two decimals.
func Value(p position.Position, current decimal.Decimal) (profit, percent decimal.Decimal) {
	diff := current.Sub(p.OpenPrice).Mul(p.Side.Sign())
	profit = diff.Mul(p.Volume)
	percent = diff.Div(p.OpenPrice).Mul(hundred).Round(2)
	return profit, percent
}

// Compute builds a portfolio from positions and quote results keyed by
// symbol. A position without a result is pending; a failed result is an
// error row. Totals include ok rows only.
func Compute(positions []position.Position, quotes map[string]quote.Result, at time.Time) *Portfolio {
	p := &Portfolio{
		ValuedAt:   at,
		Valuations: make([]Valuation, 0, len(positions)),
	}

	for _, pos := range positions {
		v := Valuation{Position: pos}

		res, ok := quotes[pos.Symbol]
		switch {
		case !ok:
			v.Status = StatusPending
		case !res.OK:
			v.Status = StatusError
			v.Reason = res.Reason
		default:
			current := decimal.NewFromFloat(res.Price)
			profit, percent := Value(pos, current)
			v.CurrentPrice = &current
			v.Profit = &profit
			v.PercentReturn = &percent
			v.Status = StatusOK
			v.Provider = res.Provider
		}

		p.Valuations = append(p.Valuations, v)
	}

	p.Totals = Summarize(p.Valuations)
	return p
}

// Pending returns a snapshot with every position pending.
func Pending(positions []position.Position, at time.Time) *Portfolio {
	return Compute(positions, nil, at)
}

// Summarize computes totals over ok rows.
func Summarize(valuations []Valuation) Totals {
	var t Totals
	for _, v := range valuations {
		switch v.Status {
		case StatusOK:
			t.TotalProfit = t.TotalProfit.Add(*v.Profit)
			t.TotalInvestment = t.TotalInvestment.Add(v.Investment())
			t.PositionCount++
		case StatusError:
			t.Failed++
		case StatusPending:
			t.Pending++
		}
	}
	if t.TotalInvestment.IsPositive() {
		t.AveragePercentReturn = t.TotalProfit.Div(t.TotalInvestment).Mul(hundred).Round(2)
	}
	return t
}
