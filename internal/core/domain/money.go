package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fraction digits every amount carries at rest.
const MoneyScale = 2

var (
	ErrAmountSyntax      = errors.New("amount is not a decimal number")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrAmountPrecision   = errors.New("amount has more than two fraction digits")
)

// ParseAmount parses a boundary amount exactly (never through float64) and
// normalizes it to two fraction digits. Trailing zeros beyond the scale are accepted.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrAmountSyntax
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrAmountSyntax
	}
	return NormalizeAmount(d)
}

// NormalizeAmount validates an already-decimal amount the same way ParseAmount does.
func NormalizeAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsPositive() {
		return decimal.Zero, ErrAmountNotPositive
	}
	if !d.Equal(d.Truncate(MoneyScale)) {
		return decimal.Zero, ErrAmountPrecision
	}
	return RoundMoney(d), nil
}

// RoundMoney rounds to two places, half away from zero (half-up for positive amounts).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}
