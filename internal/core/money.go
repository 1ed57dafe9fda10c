// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from spreadsheet
// cells and converting between cents and decimal representations.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// maxEuroDigits is the most integer digits an amount can have and still fit
// in int64 cents.
const maxEuroDigits = 17

// ParseAmount converts a cell value to Money, rounding half away from zero to cents.
//
// Numeric cells are taken as is. Text cells may carry a currency symbol, a sign,
// and either separator convention:
//
//	ParseAmount("-45,50")     -> -4550
//	ParseAmount("€ 1.234,56") -> 123456
//	ParseAmount("2000.00")    -> 200000
//	ParseAmount(12.345)       -> 1235
//
// NaN, infinities and anything that is not a number return ErrUnparsableAmount.
func ParseAmount(v any) (Money, error) {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case int32:
		d = decimal.NewFromInt(int64(x))
	case float32:
		return ParseAmount(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Money{}, fmt.Errorf("%w: %v", ErrUnparsableAmount, x)
		}
		d = decimal.NewFromFloat(x)
	case string:
		parsed, err := parseAmountText(x)
		if err != nil {
			return Money{}, err
		}
		d = parsed
	default:
		return Money{}, fmt.Errorf("%w: unsupported cell type %T", ErrUnparsableAmount, v)
	}

	if d.IsZero() {
		return Money{}, nil
	}
	// Bound the magnitude before rescaling: exponent notation such as "1e99999999"
	// would otherwise expand to millions of digits.
	digits := int64(d.NumDigits()) + int64(d.Exponent())
	switch {
	case digits > maxEuroDigits:
		return Money{}, fmt.Errorf("%w: %s out of range", ErrUnparsableAmount, cellLabel(v))
	case digits < -2:
		// Below half a cent.
		return Money{}, nil
	}

	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return Money{}, fmt.Errorf("%w: %s out of range", ErrUnparsableAmount, cellLabel(v))
	}
	return Money{Cents: cents.IntPart()}, nil
}

// cellLabel renders the raw cell for error messages, capped so that a long
// cell does not end up verbatim in the rejection report.
func cellLabel(v any) string {
	const max = 32
	text := fmt.Sprint(v)
	if len(text) > max {
		text = text[:max] + "..."
	}
	if _, ok := v.(string); ok {
		return fmt.Sprintf("%q", text)
	}
	return text
}

func parseAmountText(s string) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '€', '$', '£', ' ', '\u00a0', '\t', '\'':
			return -1
		}
		return r
	}, s)
	clean = strings.TrimSuffix(strings.TrimPrefix(clean, "EUR"), "EUR")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparsableAmount, s)
	}
	clean = normalizeSeparators(clean)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparsableAmount, s)
	}
	return d, nil
}

// normalizeSeparators rewrites s so that '.' is the only decimal separator.
// With both separators present the rightmost one is the decimal mark.
// A separator repeated more than once is a thousands separator.
func normalizeSeparators(s string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// Add returns m+o.
func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// Sub returns m-o.
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the exact decimal value in euros.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals and a dot separator.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
