// Package usecase adjudicates offline-created redemption claims against the authoritative
// ledger and exposes the double-spend audit trail.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	outboxDomain "github.com/allisson/offcash/internal/outbox/domain"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// SpentTokenRepository defines the interface for the append-only spent token table.
type SpentTokenRepository interface {
	Create(ctx context.Context, spent *reconciliationDomain.SpentToken) error
	Get(ctx context.Context, tokenID uuid.UUID) (*reconciliationDomain.SpentToken, error)
}

// AllocationRepository defines the interface for token value allocations.
type AllocationRepository interface {
	Create(ctx context.Context, allocation *reconciliationDomain.Allocation) error
	// Ensure inserts the allocation unless one already exists for the token id.
	Ensure(ctx context.Context, allocation *reconciliationDomain.Allocation) error
	// Consume reports false when the allocation of tokenID under rootTokenID cannot absorb amount.
	Consume(
		ctx context.Context,
		tokenID uuid.UUID,
		rootTokenID uuid.UUID,
		amount decimal.Decimal,
		redemptionID uuid.UUID,
		now time.Time,
	) (bool, error)
	Get(ctx context.Context, tokenID uuid.UUID) (*reconciliationDomain.Allocation, error)
	GetForUpdate(ctx context.Context, tokenID uuid.UUID) (*reconciliationDomain.Allocation, error)
	// Close consumes whatever value is left so nothing can be redeemed from the token afterwards.
	Close(ctx context.Context, tokenID uuid.UUID, now time.Time) error
}

// AuditRepository defines the interface for double-spend audit persistence.
type AuditRepository interface {
	Create(ctx context.Context, audit *reconciliationDomain.DoubleSpendAudit) error
	Get(ctx context.Context, auditID uuid.UUID) (*reconciliationDomain.DoubleSpendAudit, error)
	List(ctx context.Context, offset, limit int) ([]*reconciliationDomain.DoubleSpendAudit, error)
}

// AccountRepository is the part of the ledger the engine credits.
type AccountRepository interface {
	Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error
}

// MovementRepository records redemption credits.
type MovementRepository interface {
	Create(ctx context.Context, movement *ledgerDomain.Movement) error
}

// IssuedTokenRepository gives access to the issuance record of a root token.
type IssuedTokenRepository interface {
	GetForUpdate(ctx context.Context, tokenID uuid.UUID) (*ledgerDomain.IssuedToken, error)
	UpdateStatus(ctx context.Context, tokenID uuid.UUID, from, to tokenDomain.Status, settledAt time.Time) (bool, error)
}

// OutboxEventRepository stores security events in the same transaction as their audit.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

// ReconciliationUseCase defines the redemption business logic.
type ReconciliationUseCase interface {
	// Redeem adjudicates every claim independently and returns one result per claim, in order.
	// Rejections are reported as results; the error is reserved for infrastructure failures.
	Redeem(
		ctx context.Context,
		accountID uuid.UUID,
		claims []tokenDomain.RedemptionClaim,
	) ([]tokenDomain.RedemptionResult, error)
}

// AuditUseCase defines read access to the double-spend audit trail.
type AuditUseCase interface {
	List(ctx context.Context, offset, limit int) ([]*reconciliationDomain.DoubleSpendAudit, error)
	// Verify recomputes the signature of every stored audit.
	Verify(ctx context.Context) (*reconciliationDomain.VerificationReport, error)
}
