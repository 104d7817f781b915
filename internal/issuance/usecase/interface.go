// Package usecase mints issuer-signed root tokens against funded accounts.
package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	issuanceDomain "github.com/allisson/offcash/internal/issuance/domain"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// AccountRepository debits the funding account.
type AccountRepository interface {
	Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error
}

// IssuedTokenRepository stores issuance records.
type IssuedTokenRepository interface {
	Create(ctx context.Context, issued *ledgerDomain.IssuedToken) error
}

// MovementRepository stores issue debits.
type MovementRepository interface {
	Create(ctx context.Context, movement *ledgerDomain.Movement) error
}

// AllocationRepository opens the value allocation of every minted token.
type AllocationRepository interface {
	Create(ctx context.Context, allocation *reconciliationDomain.Allocation) error
}

// IssuanceUseCase defines the token issuing business logic.
type IssuanceUseCase interface {
	// Issue mints one token for the whole amount.
	Issue(ctx context.Context, input issuanceDomain.IssueInput) (*tokenDomain.Token, error)
	// IssueBatch mints the amount split into the configured denominations, atomically.
	IssueBatch(ctx context.Context, input issuanceDomain.IssueInput) ([]tokenDomain.Token, error)
	// IssuerPublicKey returns the key every root token verifies against.
	IssuerPublicKey() cryptoDomain.PublicKey
}
