package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a positive monetary amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Signs,
// exponents and grouping separators are rejected so that "1.234,5" is never
// silently read as something else.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseRate parses an exchange rate. An empty string means 1.
func ParseRate(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NewFromInt(1), nil
	}
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, ErrInvalidRate
	}
	return d, nil
}

// Round2 rounds a monetary value to cents for presentation.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
