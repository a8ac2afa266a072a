// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// the add form, the row selected for deletion and the report month.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spendlog/internal/core"
)

// ExpenseForm holds the four add-form fields after sanitising.
type ExpenseForm struct {
	Date     string
	Category string
	Amount   string
	Note     string
}

// ParseExpenseForm extracts the add-form fields. Validation is left to the
// service so every front-end reports the same messages.
func ParseExpenseForm(form url.Values) ExpenseForm {
	return ExpenseForm{
		Date:     sanitizeInput(form.Get("date")),
		Category: sanitizeInput(form.Get("category")),
		Amount:   sanitizeInput(form.Get("amount")),
		Note:     sanitizeInput(form.Get("note")),
	}
}

// Fields returns the form values keyed by field name.
func (f ExpenseForm) Fields() map[string]string {
	return map[string]string{"date": f.Date, "category": f.Category, "amount": f.Amount, "note": f.Note}
}

// selection is the wire form of a table row picked for deletion. The
// table renders it as JSON into each row's radio value.
type selection struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Note     string `json:"note"`
}

func newSelection(e core.Expense) selection {
	return selection{Date: e.Date, Category: e.Category, Amount: e.Amount, Note: e.Note}
}

func (s selection) expense() core.Expense {
	return core.Expense{Date: s.Date, Category: s.Category, Amount: s.Amount, Note: s.Note}
}

// encodeSelection renders a row as the JSON radio value.
func encodeSelection(e core.Expense) string {
	b, err := json.Marshal(newSelection(e))
	if err != nil {
		return ""
	}
	return string(b)
}

// ParseSelection reads the row chosen for deletion: either the "selected"
// JSON value posted by the table, or top-level date/category/amount/note
// keys. An absent selection yields the zero Expense.
func ParseSelection(p *RequestBodyParser) (core.Expense, error) {
	if raw := p.Get("selected"); raw != "" {
		var sel selection
		if err := json.Unmarshal([]byte(raw), &sel); err != nil {
			return core.Expense{}, fmt.Errorf("decode selection: %w", err)
		}
		return sel.expense(), nil
	}
	return core.Expense{
		Date:     p.Get("date"),
		Category: p.Get("category"),
		Amount:   p.Get("amount"),
		Note:     p.Get("note"),
	}, nil
}

// ParseMonthQuery returns the month parameter and whether the prompt was
// answered at all. Format validation happens in the service.
func ParseMonthQuery(query url.Values) (string, bool) {
	month := sanitizeInput(query.Get("month"))
	return month, month != ""
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]interface{}
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
