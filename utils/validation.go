package utils

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Human prices are shown only strictly inside (0, MaxDisplayAmount).
var MaxDisplayAmount = decimal.NewFromInt(1_000_000)

// ValidateJSON validates that a string is valid JSON
func ValidateJSON(data string) error {
	var js json.RawMessage
	return json.Unmarshal([]byte(data), &js)
}

// ValidateAmount checks if an amount string is a valid non-negative decimal.
// A leading "$" is accepted, as some servers advertise prices that way.
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	amount = strings.TrimPrefix(strings.TrimSpace(amount), "$")
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ValidateBigInt checks if a string is a valid big integer
func ValidateBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	bigInt := new(big.Int)
	_, success := bigInt.SetString(value, 10)
	if !success {
		return nil, fmt.Errorf("invalid big integer format")
	}

	return bigInt, nil
}

// ValidateAtomicAmount checks that value is a non-negative integer string.
func ValidateAtomicAmount(value string) (*big.Int, error) {
	n, err := ValidateBigInt(value)
	if err != nil {
		return nil, err
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("atomic amount cannot be negative")
	}
	return n, nil
}

// HumanAmount converts an atomic amount to its decimal value: atomic / 10^decimals.
func HumanAmount(atomic string, decimals int) (decimal.Decimal, error) {
	n, err := ValidateBigInt(atomic)
	if err != nil {
		return decimal.Zero, err
	}
	if decimals < 0 {
		return decimal.Zero, fmt.Errorf("decimals cannot be negative")
	}
	return decimal.NewFromBigInt(n, -int32(decimals)), nil
}

// InDisplayRange reports whether 0 < human < MaxDisplayAmount.
func InDisplayRange(human decimal.Decimal) bool {
	return human.IsPositive() && human.LessThan(MaxDisplayAmount)
}

// AtomicFromHuman converts a decimal value back to atomic units, rounding
// half away from zero at the last unit.
func AtomicFromHuman(human decimal.Decimal, decimals int) *big.Int {
	return human.Shift(int32(decimals)).Round(0).BigInt()
}

// ParseAmountWithDecimals parses a decimal amount string and converts to big.Int with specified decimals
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	scaled := dec.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	return scaled.BigInt(), nil
}

// FormatAmountFromBigInt formats a big.Int amount to decimal string with specified decimals
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	dec := decimal.NewFromBigInt(amount, -int32(decimals))
	return dec.String()
}
