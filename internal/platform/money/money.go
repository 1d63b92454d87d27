// Package money provides decimal helpers for the off-chain ledger.
//
// Balances are stored with 18 fractional digits, matching the on-chain
// token precision, so conversions between ledger amounts and minor units
// never need floating point.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits carried by ledger balances.
const Precision = 18

// ParseAmount parses a caller-supplied decimal amount string. It rejects
// non-numeric, zero, and negative values.
func ParseAmount(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Decimal{}, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount: %w", err)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// Floor18 floors an amount to 18 fractional digits. Flooring, not
// rounding, so a request can never exceed the true stored balance.
func Floor18(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundFloor(Precision)
}

// MinorUnits converts an 18-digit ledger amount to an integer minor-unit
// string (amount x 10^18), the representation on-chain transfers expect.
func MinorUnits(amount decimal.Decimal) string {
	return amount.Shift(Precision).Truncate(0).String()
}

// Format18 renders an amount with exactly 18 fractional digits for storage.
func Format18(amount decimal.Decimal) string {
	return amount.StringFixed(Precision)
}
