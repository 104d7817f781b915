// Package usecase reclaims the unredeemed value of expired tokens for their funding accounts.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	expirationDomain "github.com/allisson/offcash/internal/expiration/domain"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// IssuedTokenRepository finds and closes expired issuance records.
type IssuedTokenRepository interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*ledgerDomain.IssuedToken, error)
	CountExpired(ctx context.Context, now time.Time) (int64, error)
	UpdateStatus(ctx context.Context, tokenID uuid.UUID, from, to tokenDomain.Status, settledAt time.Time) (bool, error)
}

// AllocationRepository reads and closes root allocations.
type AllocationRepository interface {
	GetForUpdate(ctx context.Context, tokenID uuid.UUID) (*reconciliationDomain.Allocation, error)
	Close(ctx context.Context, tokenID uuid.UUID, now time.Time) error
}

// AccountRepository credits refunds.
type AccountRepository interface {
	Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error
}

// MovementRepository records refunds.
type MovementRepository interface {
	Create(ctx context.Context, movement *ledgerDomain.Movement) error
}

// ExpirationUseCase defines the expiration reclaim business logic.
type ExpirationUseCase interface {
	// Sweep closes every issuance record expired at now, refunding unredeemed value exactly once.
	Sweep(ctx context.Context, now time.Time) (*expirationDomain.SweepReport, error)
	// Count reports how many issuance records a sweep at now would close.
	Count(ctx context.Context, now time.Time) (int64, error)
	// Start sweeps on a fixed interval until ctx is canceled.
	Start(ctx context.Context) error
}
