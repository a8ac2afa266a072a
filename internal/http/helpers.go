package http

import (
	"strings"

	"github.com/shopspring/decimal"

	"spendlog/internal/core"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// formatTotal renders the running total line under the table.
func formatTotal(currency string, total decimal.Decimal) string {
	return core.TotalLine(currency, total)
}

// truncate shortens long free-text values for log fields.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
