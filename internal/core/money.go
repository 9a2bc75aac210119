// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing user supplied amounts. Amounts are
// kept as decimals with two fraction digits so that sums are exact.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a non-negative amount.
//
// Both dot (12.34) and comma (12,34) separators are accepted and the value is
// rounded half-up to two fraction digits. Zero is allowed: an account may hold
// nothing.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s, false)
	if err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ParseProfit is like ParseAmount but accepts a leading minus sign, since a
// sale below cost books a negative profit.
func ParseProfit(s string) (decimal.Decimal, error) {
	return parseDecimal(s, true)
}

func parseDecimal(s string, allowNegative bool) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch {
	case strings.HasPrefix(s, "+"):
		return decimal.Zero, ErrInvalidAmount
	case strings.HasPrefix(s, "-"):
		if !allowNegative {
			return decimal.Zero, ErrInvalidAmount
		}
		neg = true
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}

	if parts[0] == "" {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// FormatAmount renders an amount with exactly two fraction digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
