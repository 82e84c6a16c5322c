package position

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MonthSummary aggregates the closed trades of one calendar month.
// AvgPercent is the cost-weighted return of those trades, 2 dp.
type MonthSummary struct {
	Month      time.Time       `json:"month"`
	Trades     int             `json:"trades"`
	Turnover   decimal.Decimal `json:"turnover"`
	Saldo      decimal.Decimal `json:"saldo"`
	AvgPercent decimal.Decimal `json:"avg_percent"`
}

// MonthStart returns midnight on the first day of the month offset months
// away from now, in now's location. Offset 0 is the current month, -1 the
// previous one.
func MonthStart(now time.Time, offset int) time.Time {
	return time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, now.Location())
}

// FilterByMonth keeps the trades closed in the calendar month containing
// month. Trades without a close time are dropped.
func FilterByMonth(trades []ClosedTrade, month time.Time) []ClosedTrade {
	start := MonthStart(month, 0)
	next := MonthStart(month, 1)

	out := make([]ClosedTrade, 0, len(trades))
	for _, t := range trades {
		if t.CloseTime == nil {
			continue
		}
		if !t.CloseTime.Before(start) && t.CloseTime.Before(next) {
			out = append(out, t)
		}
	}
	return out
}

// SummarizeMonth filters trades to month and totals them: turnover is
// Σ volume × close price, saldo Σ gross P/L.
func SummarizeMonth(trades []ClosedTrade, month time.Time) MonthSummary {
	monthly := FilterByMonth(trades, month)

	s := MonthSummary{
		Month:  MonthStart(month, 0),
		Trades: len(monthly),
	}
	for _, t := range monthly {
		s.Turnover = s.Turnover.Add(t.Volume.Mul(t.ClosePrice))
		s.Saldo = s.Saldo.Add(t.GrossPL)
	}
	s.AvgPercent = WeightedReturn(monthly)
	return s
}

// WeightedReturn averages each trade's return GrossPL / (Volume × OpenPrice)
// weighted by that cost, in percent rounded to 2 dp. Trades with a zero open
// price are skipped; zero total cost yields zero.
func WeightedReturn(trades []ClosedTrade) decimal.Decimal {
	var cost, profit decimal.Decimal
	for _, t := range trades {
		if t.OpenPrice.IsZero() {
			continue
		}
		cost = cost.Add(t.Volume.Mul(t.OpenPrice))
		profit = profit.Add(t.GrossPL)
	}
	if !cost.IsPositive() {
		return decimal.Zero
	}
	// Σ cost·(pl/cost·100) / Σ cost
	return profit.Mul(hundred).Div(cost).Round(2)
}
