// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// AmountTolerance is the maximum difference two amounts may have and still be
// considered matching when linking documents (expense <-> invoice).
var AmountTolerance = decimal.NewFromFloat(0.01)

// DefaultTaxRate is applied to an invoice subtotal when the caller did not
// supply an explicit tax amount (21% VAT).
var DefaultTaxRate = decimal.NewFromFloat(0.21)

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// WithinTolerance reports whether two amounts differ by at most AmountTolerance.
func WithinTolerance(a, b Money) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}
