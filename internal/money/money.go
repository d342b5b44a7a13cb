// Package money provides the fixed-point currency types used by the ledger.
// All persisted amounts are Cent; Dollar exists only for aggregation and
// display and must never be stored.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cent is a signed amount of money in integer cents.
type Cent int64

// Dollar is a floating display value. Never persisted.
type Dollar float64

// Dollar converts to the display representation.
func (c Cent) Dollar() Dollar { return Dollar(c) / 100 }

// Cent converts back to cents, truncating toward zero.
func (d Dollar) Cent() Cent { return Cent(d * 100) }

// String formats the amount with two decimals, e.g. "-1234.56".
func (c Cent) String() string {
	sign := ""
	v := c
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Abs returns the magnitude of the amount.
func (c Cent) Abs() Cent {
	if c < 0 {
		return -c
	}
	return c
}

// Parse converts user-entered amount text to cents. The input must be a
// non-negative decimal number; fractional cents round to nearest.
func Parse(s string) (Cent, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("amount %q must not be negative", s)
	}
	return Cent(math.Round(f * 100)), nil
}
