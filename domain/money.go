package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are stored as NUMERIC(12,2).
const (
	AmountScale         = 2
	AmountIntegerDigits = 10
)

// maxAmountBits bounds the coefficient before any rescaling happens.
// 2^128 < 10^39, so a larger coefficient cannot fit in twelve digits.
const maxAmountBits = 128

var amountLimit = decimal.New(1, AmountIntegerDigits)

// NormalizeAmount checks that d is a non-negative amount that fits the
// storage column and returns it rounded to AmountScale places. field names
// the value in the returned ErrValidation.
func NormalizeAmount(field string, d decimal.Decimal) (decimal.Decimal, error) {
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return decimal.Zero, nil
	}
	if coef.Sign() < 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must not be negative", ErrValidation, field)
	}
	if coef.BitLen() > maxAmountBits || d.Exponent() > AmountIntegerDigits {
		return decimal.Decimal{}, fmt.Errorf("%w: %s exceeds %d integer digits", ErrValidation, field, AmountIntegerDigits)
	}
	if d.Exponent() < -(AmountScale + 39) {
		return decimal.Decimal{}, fmt.Errorf("%w: %s has more than %d decimal places", ErrValidation, field, AmountScale)
	}

	rounded := d.Round(AmountScale)
	if !rounded.Equal(d) {
		return decimal.Decimal{}, fmt.Errorf("%w: %s has more than %d decimal places", ErrValidation, field, AmountScale)
	}
	if rounded.Cmp(amountLimit) >= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: %s exceeds %d integer digits", ErrValidation, field, AmountIntegerDigits)
	}
	return rounded, nil
}
