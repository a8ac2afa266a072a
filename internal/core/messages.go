package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Notices shown to the user after an action. Both front-ends use the same
// wording.
const (
	MsgAdded         = "Expense added successfully!"
	MsgCleared       = "All expenses have been deleted."
	MsgDeleted       = "Expense deleted successfully."
	MsgNoChartData   = "No expenses available for pie chart."
	MsgConfirmClear  = "Are you sure you want to delete all expenses?"
	MsgConfirmDelete = "Are you sure you want to delete the selected expense?"
)

// TotalLine is the running total shown under the expense list.
func TotalLine(currency string, total decimal.Decimal) string {
	return "Total Expense: " + FormatAmount(currency, total)
}

// NoMonthData is the notice for a month without records.
func NoMonthData(month string) string {
	return fmt.Sprintf("No expenses found for %s.", month)
}

// UserMessage maps a domain error to the notice shown for it. The boolean
// is false for errors that are not the user's to fix (storage failures).
func UserMessage(err error) (string, bool) {
	var malformed *MalformedRowError
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrMissingField):
		return "Please fill in all fields except note.", true
	case errors.Is(err, ErrInvalidAmount):
		return "Amount must be a number.", true
	case errors.Is(err, ErrNoSelection):
		return "Please select an expense to delete.", true
	case errors.Is(err, ErrNotFound):
		return "Expense not found.", true
	case errors.Is(err, ErrInvalidMonth):
		return "Please enter the month as YYYY-MM.", true
	case errors.As(err, &malformed):
		return fmt.Sprintf("Cannot load expenses: line %d has amount %q, which is not a number.", malformed.Line, malformed.Amount), true
	case errors.Is(err, ErrNoData):
		return "No expenses found.", true
	default:
		return "", false
	}
}
