// Package domain defines the inputs and errors of token issuance.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// IssueInput asks the issuer to mint value backed by a funded account for a holder key.
// A zero Validity selects the configured default.
type IssueInput struct {
	AccountID       uuid.UUID
	HolderPublicKey cryptoDomain.PublicKey
	Amount          decimal.Decimal
	Validity        time.Duration
}

// Validate checks the input against the issuer limits.
func (i *IssueInput) Validate(maxValidity time.Duration) error {
	if err := i.HolderPublicKey.Validate(); err != nil {
		return err
	}
	if err := tokenDomain.ValidateAmount(i.Amount); err != nil {
		return err
	}
	if i.Validity < 0 || (maxValidity > 0 && i.Validity > maxValidity) {
		return ErrInvalidValidity
	}
	return nil
}

// Split breaks amount into the given denominations, largest first. Whatever cannot be
// expressed with them becomes a final token of its own. It fails with ErrTooManyTokens as soon
// as more than maxParts parts would be needed.
func Split(amount decimal.Decimal, denominations []decimal.Decimal, maxParts int) ([]decimal.Decimal, error) {
	var parts []decimal.Decimal
	remaining := amount
	for _, d := range denominations {
		if !d.IsPositive() {
			continue
		}
		count, _ := remaining.QuoRem(d, 0)
		if !count.IsPositive() {
			continue
		}
		if count.GreaterThan(decimal.NewFromInt(int64(maxParts - len(parts)))) {
			return nil, ErrTooManyTokens
		}
		for n := count.IntPart(); n > 0; n-- {
			parts = append(parts, d)
		}
		remaining = remaining.Sub(d.Mul(count))
	}
	if remaining.IsPositive() {
		if len(parts) == maxParts {
			return nil, ErrTooManyTokens
		}
		parts = append(parts, remaining)
	}
	return parts, nil
}
