package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultWidth = 80
	WideWidth    = 120
)

// PrintHeader prints a report title framed by '=' rules
func PrintHeader(title string, width int) {
	rule := strings.Repeat("=", width)
	fmt.Printf("\n%s\n%s\n%s\n", rule, title, rule)
}

// PrintFooter prints a report summary framed by '=' rules
func PrintFooter(summary string, width int) {
	rule := strings.Repeat("=", width)
	fmt.Printf("\n%s\n%s\n%s\n\n", rule, summary, rule)
}

// PrintBoxSeparator prints the rule between a purse heading and its rows
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// FormatAmount renders money at the currency scale with its code, e.g. "80.00 USD"
func FormatAmount(amount decimal.Decimal, scale int32, currency string) string {
	return amount.StringFixed(scale) + " " + currency
}
