// Package render prints valuations and estimates for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/matrixise/wallet-valuator/internal/exchange"
	"github.com/matrixise/wallet-valuator/internal/valuation"
)

// FiatPlaces is the precision of printed fiat values
const FiatPlaces = 2

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

// Valuations writes one row per view, in the given order, followed by the
// portfolio total.
func Valuations(w io.Writer, views []valuation.View) error {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.Symbol,
			v.Network,
			v.FormattedAmount,
			fiat(v.USDValue),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("SYMBOL", "NETWORK", "AMOUNT", "USD VALUE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 2:
				return numberStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintf(w, "%s\n%s %s\n",
		t.String(),
		labelStyle.Render("Total:"),
		fiat(valuation.Total(views)),
	)
	return err
}

// Estimate writes an exchange estimate. Missing parts are reported as
// pending or unavailable.
func Estimate(w io.Writer, est exchange.Estimate) error {
	var b strings.Builder

	pay := fmt.Sprintf("%s %s", est.Amount, est.Source)
	if est.InputValue != "" {
		pay += mutedStyle.Render(fmt.Sprintf(" (≈ $%s)", est.InputValue))
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("You pay:"), pay)

	var receive string
	switch {
	case est.Output != nil:
		receive = fmt.Sprintf("≈ %s %s", est.Formatted, est.Destination)
	case est.Loading.Source || est.Loading.Destination:
		receive = mutedStyle.Render(fmt.Sprintf("pending %s", pendingSides(est.Loading)))
	default:
		receive = mutedStyle.Render("unavailable")
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("You receive:"), receive)

	_, err := io.WriteString(w, b.String())
	return err
}

func pendingSides(l exchange.Loading) string {
	switch {
	case l.Source && l.Destination:
		return "source and destination prices"
	case l.Source:
		return "source price"
	default:
		return "destination price"
	}
}

func fiat(d decimal.Decimal) string {
	return "$" + d.StringFixed(FiatPlaces)
}
