package render

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the account currency of the broker exports.
const DefaultCurrency = money.EUR

// FormatMoney renders amount in currency, rounded to the currency's minor
// unit. Unknown currency codes fall back to a plain two-decimal number.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// FormatSignedMoney prefixes positive amounts with a plus sign.
func FormatSignedMoney(amount decimal.Decimal, currency string) string {
	s := FormatMoney(amount, currency)
	if amount.IsPositive() {
		return "+" + s
	}
	return s
}

func formatPercent(p decimal.Decimal) string {
	s := p.StringFixed(2) + "%"
	if p.IsPositive() {
		return "+" + s
	}
	return s
}
