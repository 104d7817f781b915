package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/allisson/offcash/internal/database"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// ledgerUseCase implements LedgerUseCase.
type ledgerUseCase struct {
	txManager    database.TxManager
	accountRepo  AccountRepository
	movementRepo MovementRepository
}

// CreateAccount opens an empty account.
func (l *ledgerUseCase) CreateAccount(ctx context.Context, name string) (*ledgerDomain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ledgerDomain.ErrInvalidAccountName
	}

	now := time.Now().UTC()
	account := &ledgerDomain.Account{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      name,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Get retrieves an account by ID.
func (l *ledgerUseCase) Get(ctx context.Context, accountID uuid.UUID) (*ledgerDomain.Account, error) {
	return l.accountRepo.Get(ctx, accountID)
}

// Fund credits amount and appends a fund movement in the same transaction. A fund movement
// is not tied to a token, so its own id fills the token column.
func (l *ledgerUseCase) Fund(
	ctx context.Context,
	accountID uuid.UUID,
	amount decimal.Decimal,
) (*ledgerDomain.Account, error) {
	if err := tokenDomain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var account *ledgerDomain.Account
	err := l.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := l.accountRepo.Credit(ctx, accountID, amount); err != nil {
			return err
		}

		movement := ledgerDomain.NewMovement(accountID, uuid.Nil, ledgerDomain.MovementFund, amount, nil, time.Now())
		movement.TokenID = movement.ID
		if err := l.movementRepo.Create(ctx, movement); err != nil {
			return err
		}

		var err error
		account, err = l.accountRepo.Get(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListMovements returns the movements of an account, newest first.
func (l *ledgerUseCase) ListMovements(
	ctx context.Context,
	accountID uuid.UUID,
	offset, limit int,
) ([]*ledgerDomain.Movement, error) {
	if _, err := l.accountRepo.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return l.movementRepo.ListByAccount(ctx, accountID, offset, limit)
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager database.TxManager,
	accountRepo AccountRepository,
	movementRepo MovementRepository,
) LedgerUseCase {
	return &ledgerUseCase{
		txManager:    txManager,
		accountRepo:  accountRepo,
		movementRepo: movementRepo,
	}
}
