package core

import (
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Listing is the full table view: every record in file order and the sum
// of the amount column.
type Listing struct {
	Expenses []Expense
	Total    decimal.Decimal
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthReport is the set of records whose date starts with Month.
type MonthReport struct {
	Month    string
	Expenses []Expense
	Total    decimal.Decimal
}

// Fingerprint identifies rows by content and order. Anything derived from
// the rows alone can be cached under it and never goes stale: a different
// file yields a different key.
func Fingerprint(rows []Expense) string {
	h := fnv.New64a()
	for _, e := range rows {
		for _, f := range e.Fields() {
			_, _ = io.WriteString(h, f)
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.Write([]byte{0x1e})
	}
	return fmt.Sprintf("%d-%016x", len(rows), h.Sum64())
}

// NewListing sums the amount column. Any row whose amount does not parse
// fails the whole listing; line numbers count the header as line 1.
func NewListing(rows []Expense) (Listing, error) {
	total := decimal.Zero
	for i, e := range rows {
		v, err := e.Value()
		if err != nil {
			return Listing{}, &MalformedRowError{Line: i + 2, Amount: e.Amount}
		}
		total = total.Add(v)
	}
	return Listing{Expenses: rows, Total: total}, nil
}

// CategoryTotals sums amounts per category in first-seen order. Rows with a
// malformed amount are skipped. Returns ErrNoData when nothing is left.
func CategoryTotals(rows []Expense) ([]CategoryAmount, error) {
	index := make(map[string]int)
	var out []CategoryAmount
	for _, e := range rows {
		v, err := e.Value()
		if err != nil {
			continue
		}
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryAmount{Name: e.Category, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(v)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// MonthlyReport keeps the rows whose date starts with month. The match is a
// plain string prefix; callers that want calendar semantics validate month
// with ParseMonth first. Malformed amounts are listed but not summed.
// Returns ErrNoData when no row matches.
func MonthlyReport(rows []Expense, month string) (MonthReport, error) {
	report := MonthReport{Month: month, Total: decimal.Zero}
	for _, e := range rows {
		if !strings.HasPrefix(e.Date, month) {
			continue
		}
		report.Expenses = append(report.Expenses, e)
		if v, err := e.Value(); err == nil {
			report.Total = report.Total.Add(v)
		}
	}
	if len(report.Expenses) == 0 {
		return report, ErrNoData
	}
	return report, nil
}

// ParseMonth trims s and checks that it is exactly YYYY-MM.
func ParseMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != len("2006-01") {
		return "", ErrInvalidMonth
	}
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", ErrInvalidMonth
	}
	return s, nil
}

// Text renders the report the way the monthly report dialog shows it.
func (r MonthReport) Text(currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expenses for %s:\n\n", r.Month)
	for _, e := range r.Expenses {
		fmt.Fprintf(&b, "Date: %s, Category: %s, Amount: %s%s, Note: %s\n", e.Date, e.Category, currency, e.Amount, e.Note)
	}
	fmt.Fprintf(&b, "\nTotal for %s: %s", r.Month, FormatAmount(currency, r.Total))
	return b.String()
}
