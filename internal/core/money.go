// Package core provides the inventory domain model and valuation logic.
//
// This file contains the permissive numeric coercion used at the input
// boundary: malformed or missing numbers become zero instead of errors.
package core

import (
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice converts user input to a non-negative unit price.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Empty, non-numeric or negative input yields zero; it never fails.
//
// Examples:
//
//	ParsePrice("12.50") -> 12.5
//	ParsePrice("12,50") -> 12.5
//	ParsePrice("abc")   -> 0
//	ParsePrice("-3")    -> 0
func ParsePrice(s string) decimal.Decimal {
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseQuantity converts user input to a non-negative whole quantity.
// Fractional input is truncated toward zero; anything unparsable or above
// MaxQuantity is zero.
func ParseQuantity(s string) int {
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() || d.GreaterThan(maxQuantityDecimal) {
		return 0
	}
	return int(d.IntPart())
}

// ParseWholeNumber parses a whole number that fits in an int32. Fractions,
// overflow and unparsable input report false.
func ParseWholeNumber(s string) (int, bool) {
	d, ok := parseDecimal(s)
	if !ok || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	if d.GreaterThan(maxInt32Decimal) || d.LessThan(minInt32Decimal) {
		return 0, false
	}
	return int(d.IntPart()), true
}

const (
	// MaxQuantity bounds quantities so that every product with a price
	// stays exact and finite.
	MaxQuantity = math.MaxInt32

	// Inputs beyond these bounds are treated as unparsable.
	maxIntegerDigits  = 15
	maxFractionDigits = 30
	maxInputLength    = 64
)

var (
	maxQuantityDecimal = decimal.NewFromInt(MaxQuantity)
	maxInt32Decimal    = decimal.NewFromInt(math.MaxInt32)
	minInt32Decimal    = decimal.NewFromInt(math.MinInt32)
)

// parseDecimal rejects magnitudes and precisions outside the bounds before
// any arithmetic happens: rescaling "1e99999999" would allocate a number
// with a hundred million digits.
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxInputLength {
		return decimal.Zero, false
	}
	// Only one separator style is expected per value
	if !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return decimal.Zero, true
	}
	digits := len(new(big.Int).Abs(coef).String())
	exp := int64(d.Exponent())
	if int64(digits)+exp > maxIntegerDigits || -exp > maxFractionDigits {
		return decimal.Zero, false
	}
	return d, true
}
