// Package render turns portfolio snapshots, quotes and market movers into
// terminal tables.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rovshanmuradov/xtbhelper/internal/monitor"
	"github.com/rovshanmuradov/xtbhelper/internal/movers"
	"github.com/rovshanmuradov/xtbhelper/internal/position"
	"github.com/rovshanmuradov/xtbhelper/internal/quote"
	"github.com/rovshanmuradov/xtbhelper/internal/ui/component"
	"github.com/rovshanmuradov/xtbhelper/internal/ui/style"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04:05"

// Terminal writes each snapshot to w as a table followed by a totals line.
// It is safe for concurrent use.
type Terminal struct {
	mu       sync.Mutex
	w        io.Writer
	currency string
	clear    bool
	palette  style.Palette
}

type Option func(*Terminal)

// WithClearScreen makes every snapshot redraw the screen instead of
// appending below the previous one.
func WithClearScreen() Option {
	return func(t *Terminal) { t.clear = true }
}

func WithCurrency(code string) Option {
	return func(t *Terminal) { t.currency = code }
}

func NewTerminal(w io.Writer, opts ...Option) *Terminal {
	t := &Terminal{w: w, currency: DefaultCurrency, palette: style.DefaultPalette()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Render implements monitor.Renderer.
func (t *Terminal) Render(p *monitor.Portfolio) error {
	out := Portfolio(p, t.currency)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clear {
		if _, err := io.WriteString(t.w, "\033[H\033[2J"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(t.w, out+"\n")
	return err
}

// Portfolio formats a snapshot as a table plus totals.
func Portfolio(p *monitor.Portfolio, currency string) string {
	palette := style.DefaultPalette()
	table := component.NewTable().
		AddColumn("Symbol", 0, lipgloss.Left).
		AddColumn("Side", 0, lipgloss.Left).
		AddColumn("Volume", 0, lipgloss.Right).
		AddColumn("Open", 0, lipgloss.Right).
		AddColumn("Current", 0, lipgloss.Right).
		AddColumn("Profit", 0, lipgloss.Right).
		AddColumn("Return", 0, lipgloss.Right).
		AddColumn("Source", 0, lipgloss.Left)

	for _, v := range p.Valuations {
		row := []string{
			v.Symbol,
			string(v.Side),
			v.Volume.String(),
			FormatMoney(v.OpenPrice, currency),
		}
		switch v.Status {
		case monitor.StatusOK:
			row = append(row,
				FormatMoney(*v.CurrentPrice, currency),
				FormatSignedMoney(*v.Profit, currency),
				formatPercent(*v.PercentReturn),
				v.Provider,
			)
			table.AddStyledRow(row, palette.Signed(v.Profit.Sign()))
		case monitor.StatusPending:
			row = append(row, "...", "...", "...", "loading")
			table.AddStyledRow(row, palette.Warning)
		default:
			row = append(row, "n/a", "n/a", "n/a", v.Reason)
			table.AddStyledRow(row, palette.Loss)
		}
	}

	var b strings.Builder
	b.WriteString(table.View())
	b.WriteString("\n")
	b.WriteString(Totals(p, currency))
	return b.String()
}

// Totals formats the aggregate line of a snapshot.
func Totals(p *monitor.Portfolio, currency string) string {
	palette := style.DefaultPalette()
	t := p.Totals
	profit := lipgloss.NewStyle().Foreground(palette.Signed(t.TotalProfit.Sign())).Bold(true).
		Render(FormatSignedMoney(t.TotalProfit, currency))

	line := fmt.Sprintf("Total P/L %s on %s invested (%s) | %d positions",
		profit,
		FormatMoney(t.TotalInvestment, currency),
		formatPercent(t.AveragePercentReturn),
		t.PositionCount,
	)
	if t.Failed > 0 {
		line += fmt.Sprintf(", %d unpriced", t.Failed)
	}
	if t.Pending > 0 {
		line += fmt.Sprintf(", %d loading", t.Pending)
	}
	if !p.ValuedAt.IsZero() {
		line += " | " + p.ValuedAt.Local().Format(timeLayout)
	}
	return line
}

// Quotes formats chain results in symbol order.
func Quotes(results map[string]quote.Result) string {
	palette := style.DefaultPalette()
	symbols := make([]string, 0, len(results))
	for s := range results {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	table := component.NewTable().
		AddColumn("Symbol", 0, lipgloss.Left).
		AddColumn("Price", 0, lipgloss.Right).
		AddColumn("Source", 0, lipgloss.Left)
	for _, s := range symbols {
		r := results[s]
		if r.OK {
			table.AddRow([]string{s, decimal.NewFromFloat(r.Price).StringFixed(4), r.Provider})
			continue
		}
		table.AddStyledRow([]string{s, "n/a", r.Reason}, palette.Loss)
	}
	return table.View()
}

// Movers formats the gainers and losers of a scan side by side.
func Movers(r *movers.Report, n int) string {
	palette := style.DefaultPalette()
	gainers, losers := r.Top(n)

	side := func(title string, list []movers.Mover) string {
		table := component.NewTable().
			AddColumn("#", 0, lipgloss.Right).
			AddColumn(title, 0, lipgloss.Left).
			AddColumn("Change", 0, lipgloss.Right)
		for i, m := range list {
			change := decimal.NewFromFloat(m.ChangePercent)
			table.AddStyledRow(
				[]string{fmt.Sprint(i + 1), m.Symbol, formatPercent(change)},
				palette.Signed(change.Sign()),
			)
		}
		return table.View()
	}

	header := fmt.Sprintf("%s movers | %d symbols scanned | %s",
		r.Exchange, r.Scanned, r.GeneratedAt.Local().Format(timeLayout))
	return header + "\n" + lipgloss.JoinHorizontal(lipgloss.Top,
		side("Gainers", gainers), "  ", side("Losers", losers))
}

// ClosedTrades formats merged closed trades with a gross total. The Name
// column appears once any trade carries a name.
func ClosedTrades(trades []position.ClosedTrade, currency string) string {
	named := false
	for _, t := range trades {
		if t.Name != "" {
			named = true
			break
		}
	}

	palette := style.DefaultPalette()
	table := component.NewTable().AddColumn("Symbol", 0, lipgloss.Left)
	if named {
		table.AddColumn("Name", 24, lipgloss.Left)
	}
	table.AddColumn("Volume", 0, lipgloss.Right).
		AddColumn("Open", 0, lipgloss.Right).
		AddColumn("Close", 0, lipgloss.Right).
		AddColumn("Gross P/L", 0, lipgloss.Right).
		AddColumn("Closed", 0, lipgloss.Left)

	total := decimal.Zero
	for _, t := range trades {
		closed := ""
		if t.CloseTime != nil {
			closed = t.CloseTime.Format(timeLayout)
		}
		total = total.Add(t.GrossPL)

		row := []string{t.Symbol}
		if named {
			row = append(row, t.Name)
		}
		row = append(row,
			t.Volume.String(),
			FormatMoney(t.OpenPrice, currency),
			FormatMoney(t.ClosePrice, currency),
			FormatSignedMoney(t.GrossPL, currency),
			closed,
		)
		table.AddStyledRow(row, palette.Signed(t.GrossPL.Sign()))
	}
	return table.View() + "\n" + fmt.Sprintf("%d trades, gross %s", len(trades), FormatSignedMoney(total, currency))
}

// MonthSummary formats one month's turnover, saldo and weighted return.
func MonthSummary(s position.MonthSummary, currency string) string {
	palette := style.DefaultPalette()
	label := lipgloss.NewStyle().Bold(true).Foreground(palette.Primary)
	signed := func(sign int) lipgloss.Style { return lipgloss.NewStyle().Foreground(palette.Signed(sign)) }

	return fmt.Sprintf("%s | %d trades | turnover %s | saldo %s | avg %s",
		label.Render(s.Month.Format("January 2006")),
		s.Trades,
		FormatMoney(s.Turnover, currency),
		signed(s.Saldo.Sign()).Render(FormatSignedMoney(s.Saldo, currency)),
		signed(s.AvgPercent.Sign()).Render(formatPercent(s.AvgPercent)))
}
