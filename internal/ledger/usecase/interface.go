// Package usecase defines the interfaces and implementations for the funded account ledger.
// Accounts back token issuance, receive redemptions and collect expiry refunds.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// AccountRepository defines the interface for account persistence operations.
type AccountRepository interface {
	Create(ctx context.Context, account *ledgerDomain.Account) error
	Get(ctx context.Context, accountID uuid.UUID) (*ledgerDomain.Account, error)
	Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error
	Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error
}

// MovementRepository defines the interface for ledger movement persistence operations.
type MovementRepository interface {
	Create(ctx context.Context, movement *ledgerDomain.Movement) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, offset, limit int) ([]*ledgerDomain.Movement, error)
}

// IssuedTokenRepository defines the interface for issuance record persistence operations.
type IssuedTokenRepository interface {
	Create(ctx context.Context, issued *ledgerDomain.IssuedToken) error
	Get(ctx context.Context, tokenID uuid.UUID) (*ledgerDomain.IssuedToken, error)
	GetForUpdate(ctx context.Context, tokenID uuid.UUID) (*ledgerDomain.IssuedToken, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*ledgerDomain.IssuedToken, error)
	CountExpired(ctx context.Context, now time.Time) (int64, error)
	UpdateStatus(ctx context.Context, tokenID uuid.UUID, from, to tokenDomain.Status, settledAt time.Time) (bool, error)
}

// LedgerUseCase defines the interface for account management business logic.
type LedgerUseCase interface {
	CreateAccount(ctx context.Context, name string) (*ledgerDomain.Account, error)
	Get(ctx context.Context, accountID uuid.UUID) (*ledgerDomain.Account, error)
	// Fund credits an account from outside the ledger and records a fund movement.
	Fund(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*ledgerDomain.Account, error)
	ListMovements(ctx context.Context, accountID uuid.UUID, offset, limit int) ([]*ledgerDomain.Movement, error)
}
