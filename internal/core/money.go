// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing amounts entered by the user and
// formatting totals for display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are stored expanded, so "1e9999999" would write ten million
// digits. Anything wider than these bounds is rejected.
const (
	maxAmountIntDigits = 18
	maxAmountScale     = 18
)

// ParseAmount converts an amount string to a decimal.
//
// Surrounding whitespace is ignored. Signs and exponents are accepted as
// long as the value has at most 18 integer digits and 18 decimal places.
// Returns ErrInvalidAmount for anything else.
//
// Examples:
//
//	ParseAmount("12.50") -> 12.5, nil
//	ParseAmount("1e3")   -> 1000, nil
//	ParseAmount("1e30")  -> 0, ErrInvalidAmount
//	ParseAmount("abc")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	// checked on coefficient and exponent; d.String() would expand first
	exp := int64(d.Exponent())
	if exp < -maxAmountScale || int64(d.NumDigits())+exp > maxAmountIntDigits {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with two decimals behind a currency symbol,
// e.g. "₹35.00" or "-₹4.50".
func FormatAmount(currency string, d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + currency + d.Neg().StringFixed(2)
	}
	return currency + d.StringFixed(2)
}
