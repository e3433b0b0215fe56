// Package money formats minor-unit amounts for display.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders minor units (paise, cents) as a major unit string with two
// decimals, e.g. 123456 -> "1234.56".
func Format(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// Parse converts a major unit string into minor units. More than two
// fractional digits is rejected rather than rounded.
func Parse(major string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(major))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", major, err)
	}
	scaled := d.Shift(2)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than two decimals", major)
	}
	return scaled.IntPart(), nil
}
