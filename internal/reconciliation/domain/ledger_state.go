// Package domain defines the authoritative ledger state used to adjudicate redemption claims.
//
// spent_tokens is the single source of truth for double spending: a token id can be inserted
// once. token_allocations tracks, per token id, how much of its value has been consumed by
// redemptions of the token itself or of its descendants, so siblings that together exceed
// their parent are rejected even though each has a distinct id.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SpentToken records the redemption of one token id. Rows are append-only.
type SpentToken struct {
	TokenID      uuid.UUID
	RedemptionID uuid.UUID
	RootTokenID  uuid.UUID
	AccountID    uuid.UUID
	Amount       decimal.Decimal
	SpentAt      time.Time
}

// Allocation is the consumed share of a token's value.
type Allocation struct {
	TokenID           uuid.UUID
	RootTokenID       uuid.UUID
	Capacity          decimal.Decimal
	Consumed          decimal.Decimal
	FirstRedemptionID *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewAllocation creates an unconsumed allocation for a token of the given value.
func NewAllocation(tokenID, rootTokenID uuid.UUID, capacity decimal.Decimal, now time.Time) *Allocation {
	return &Allocation{
		TokenID:     tokenID,
		RootTokenID: rootTokenID,
		Capacity:    capacity,
		Consumed:    decimal.Zero,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}

// Remaining returns the value not yet consumed.
func (a *Allocation) Remaining() decimal.Decimal {
	return a.Capacity.Sub(a.Consumed)
}

// IsExhausted reports whether the whole capacity was consumed.
func (a *Allocation) IsExhausted() bool {
	return !a.Consumed.LessThan(a.Capacity)
}
