// Package money holds the currency arithmetic shared by every engine. All
// chargeable amounts go through Round so results are identical everywhere.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the currency precision.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns round2(amount * rate / 100).
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate).Div(hundred))
}

// Times returns round2(price * qty).
func Times(price decimal.Decimal, qty int64) decimal.Decimal {
	return Round(price.Mul(decimal.NewFromInt(qty)))
}

func Units(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// Parse reads a decimal amount, rejecting anything with more precision than
// the currency carries.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if !Round(d).Equal(d) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", s, Places)
	}
	return d, nil
}

// Cents converts to minor units for display libraries.
func Cents(d decimal.Decimal) int64 {
	return Round(d).Shift(Places).IntPart()
}
