package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// Expense is one stored row. Amount keeps the stored text so rows written
	// by other tools round-trip unchanged.
	Expense struct {
		Date     string
		Category string
		Amount   string
		Note     string
	}
)

var (
	ErrMissingField  = errors.New("please fill in all fields except note")
	ErrInvalidAmount = errors.New("amount must be a number")
	ErrNoSelection   = errors.New("please select an expense to delete")
	ErrNoData        = errors.New("no data")
	ErrNotFound      = errors.New("expense not found")
	ErrInvalidMonth  = errors.New("month must be in YYYY-MM format")
	ErrMalformedRow  = errors.New("malformed row")
)

// Header is the fixed column header of the storage file.
var Header = []string{"Date", "Category", "Amount", "Note"}

// NewExpense validates raw form input and returns the record to store.
// The amount is normalised to its decimal rendering.
func NewExpense(date, category, amount, note string) (Expense, error) {
	e := Expense{
		Date:     strings.TrimSpace(date),
		Category: strings.TrimSpace(category),
		Amount:   strings.TrimSpace(amount),
		Note:     strings.TrimSpace(note),
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	d, _ := ParseAmount(e.Amount)
	e.Amount = d.String()
	return e, nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Date) == "" || strings.TrimSpace(e.Category) == "" || strings.TrimSpace(e.Amount) == "" {
		return ErrMissingField
	}
	if _, err := ParseAmount(e.Amount); err != nil {
		return err
	}
	return nil
}

// Value parses the stored amount.
func (e Expense) Value() (decimal.Decimal, error) {
	return ParseAmount(e.Amount)
}

// Fields returns the record in storage column order.
func (e Expense) Fields() []string {
	return []string{e.Date, e.Category, e.Amount, e.Note}
}

// FromFields builds a record from a storage row. Missing trailing columns
// are treated as empty; extra columns are ignored.
func FromFields(fields []string) Expense {
	get := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	return Expense{Date: get(0), Category: get(1), Amount: get(2), Note: get(3)}
}

// MalformedRowError reports a stored row whose amount does not parse.
type MalformedRowError struct {
	Line   int
	Amount string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row at line %d: amount %q is not a number", e.Line, e.Amount)
}

func (e *MalformedRowError) Unwrap() error {
	return ErrMalformedRow
}
