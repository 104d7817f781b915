package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a decimal string and validates it with ValidateAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks that d is positive and representable at AmountScale.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() || !IsRepresentable(d) {
		return ErrInvalidAmount
	}
	return nil
}

// IsRepresentable reports whether d has no digits beyond AmountScale.
func IsRepresentable(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale))
}

// FormatAmount renders d with exactly AmountScale decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

// SumAmounts adds the amounts of tokens.
func SumAmounts(tokens []Token) decimal.Decimal {
	total := decimal.Zero
	for i := range tokens {
		total = total.Add(tokens[i].Amount)
	}
	return total
}
