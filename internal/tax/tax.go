// Package tax implements fixed-point VAT arithmetic with half-up rounding.
//
// Every intermediate result is rounded to two decimal digits before it is
// used in the next step, so totals are reproducible for audit.
package tax

import (
	"errors"

	"github.com/shopspring/decimal"
)

// StandardRate is the standard VAT rate applied when a record carries none.
var StandardRate = decimal.NewFromFloat(0.15)

var (
	ErrNonPositiveAmount = errors.New("taxable amount must be positive")
	ErrNegativeRate      = errors.New("tax rate must not be negative")
	ErrNonPositiveQty    = errors.New("quantity must be positive")
	ErrNegativePrice     = errors.New("unit price must not be negative")
)

// Compute returns the VAT amount and the gross (tax-inclusive) amount for a
// taxable amount at the given fractional rate (e.g. 0.15).
func Compute(taxable, rate decimal.Decimal) (tax, gross decimal.Decimal, err error) {
	if !taxable.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrNonPositiveAmount
	}
	if rate.IsNegative() {
		return decimal.Zero, decimal.Zero, ErrNegativeRate
	}

	taxable = taxable.Round(2)
	tax = taxable.Mul(rate).Round(2)
	gross = taxable.Add(tax).Round(2)
	return tax, gross, nil
}

// ComputeLine returns the taxable line amount and its VAT for a quantity of
// units at a unit price.
func ComputeLine(quantity int64, unitPrice, rate decimal.Decimal) (amount, tax decimal.Decimal, err error) {
	if quantity <= 0 {
		return decimal.Zero, decimal.Zero, ErrNonPositiveQty
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, decimal.Zero, ErrNegativePrice
	}

	amount = unitPrice.Round(2).Mul(decimal.NewFromInt(quantity)).Round(2)
	if amount.IsZero() {
		return amount, decimal.Zero, nil
	}
	tax, _, err = Compute(amount, rate)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return amount, tax, nil
}

// Sum adds decimals and rounds the result to two digits.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total.Round(2)
}

// WithinTolerance reports whether a and b differ by at most one cent.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.New(1, -2))
}
