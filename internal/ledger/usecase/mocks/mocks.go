// Package mocks provides mock implementations of the ledger use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockAccountRepository) Create(ctx context.Context, account *ledgerDomain.Account) error {
	return m.Called(ctx, account).Error(0)
}

// Get mocks the Get method.
func (m *MockAccountRepository) Get(ctx context.Context, accountID uuid.UUID) (*ledgerDomain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerDomain.Account), args.Error(1)
}

// Credit mocks the Credit method.
func (m *MockAccountRepository) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	return m.Called(ctx, accountID, amount).Error(0)
}

// Debit mocks the Debit method.
func (m *MockAccountRepository) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	return m.Called(ctx, accountID, amount).Error(0)
}

// MockMovementRepository is a mock implementation of MovementRepository.
type MockMovementRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockMovementRepository) Create(ctx context.Context, movement *ledgerDomain.Movement) error {
	return m.Called(ctx, movement).Error(0)
}

// ListByAccount mocks the ListByAccount method.
func (m *MockMovementRepository) ListByAccount(
	ctx context.Context,
	accountID uuid.UUID,
	offset, limit int,
) ([]*ledgerDomain.Movement, error) {
	args := m.Called(ctx, accountID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledgerDomain.Movement), args.Error(1)
}

// MockIssuedTokenRepository is a mock implementation of IssuedTokenRepository.
type MockIssuedTokenRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockIssuedTokenRepository) Create(ctx context.Context, issued *ledgerDomain.IssuedToken) error {
	return m.Called(ctx, issued).Error(0)
}

// Get mocks the Get method.
func (m *MockIssuedTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*ledgerDomain.IssuedToken, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerDomain.IssuedToken), args.Error(1)
}

// GetForUpdate mocks the GetForUpdate method.
func (m *MockIssuedTokenRepository) GetForUpdate(
	ctx context.Context,
	tokenID uuid.UUID,
) (*ledgerDomain.IssuedToken, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerDomain.IssuedToken), args.Error(1)
}

// ListExpired mocks the ListExpired method.
func (m *MockIssuedTokenRepository) ListExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*ledgerDomain.IssuedToken, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledgerDomain.IssuedToken), args.Error(1)
}

// CountExpired mocks the CountExpired method.
func (m *MockIssuedTokenRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method.
func (m *MockIssuedTokenRepository) UpdateStatus(
	ctx context.Context,
	tokenID uuid.UUID,
	from, to tokenDomain.Status,
	settledAt time.Time,
) (bool, error) {
	args := m.Called(ctx, tokenID, from, to, settledAt)
	return args.Bool(0), args.Error(1)
}

// MockLedgerUseCase is a mock implementation of LedgerUseCase.
type MockLedgerUseCase struct {
	mock.Mock
}

// CreateAccount mocks the CreateAccount method.
func (m *MockLedgerUseCase) CreateAccount(ctx context.Context, name string) (*ledgerDomain.Account, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerDomain.Account), args.Error(1)
}

// Get mocks the Get method.
func (m *MockLedgerUseCase) Get(ctx context.Context, accountID uuid.UUID) (*ledgerDomain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerDomain.Account), args.Error(1)
}

// Fund mocks the Fund method.
func (m *MockLedgerUseCase) Fund(
	ctx context.Context,
	accountID uuid.UUID,
	amount decimal.Decimal,
) (*ledgerDomain.Account, error) {
	args := m.Called(ctx, accountID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerDomain.Account), args.Error(1)
}

// ListMovements mocks the ListMovements method.
func (m *MockLedgerUseCase) ListMovements(
	ctx context.Context,
	accountID uuid.UUID,
	offset, limit int,
) ([]*ledgerDomain.Movement, error) {
	args := m.Called(ctx, accountID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledgerDomain.Movement), args.Error(1)
}
