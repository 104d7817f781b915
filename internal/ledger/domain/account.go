// Package domain defines the authoritative ledger: funded accounts, the issuance record of every
// minted token and the movements that move value between them.
//
// Value conservation holds globally: for every issued token,
// amount = redeemed credits + expiry refund + still outstanding.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a funded balance that backs issued tokens and receives redemptions.
type Account struct {
	ID        uuid.UUID
	Name      string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MovementKind classifies a ledger movement.
type MovementKind string

const (
	// MovementFund credits an account from the external funding service.
	MovementFund MovementKind = "fund"
	// MovementIssueDebit debits the funding account when a token is minted.
	MovementIssueDebit MovementKind = "issue_debit"
	// MovementRedeemCredit credits the redeeming account.
	MovementRedeemCredit MovementKind = "redeem_credit"
	// MovementExpiryRefund returns the unredeemed remainder of an expired token.
	MovementExpiryRefund MovementKind = "expiry_refund"
)

// Movement is an append-only ledger entry. (Kind, TokenID) is unique so a movement is never
// applied twice for the same token.
type Movement struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	TokenID     uuid.UUID
	Kind        MovementKind
	Amount      decimal.Decimal
	ReferenceID *uuid.UUID
	CreatedAt   time.Time
}

// NewMovement builds a movement with a fresh id.
func NewMovement(
	accountID, tokenID uuid.UUID,
	kind MovementKind,
	amount decimal.Decimal,
	reference *uuid.UUID,
	now time.Time,
) *Movement {
	return &Movement{
		ID:          uuid.Must(uuid.NewV7()),
		AccountID:   accountID,
		TokenID:     tokenID,
		Kind:        kind,
		Amount:      amount,
		ReferenceID: reference,
		CreatedAt:   now.UTC(),
	}
}
