// Package mocks provides mock implementations of the reconciliation use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/allisson/offcash/internal/outbox/domain"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// MockSpentTokenRepository is a mock implementation of SpentTokenRepository.
type MockSpentTokenRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockSpentTokenRepository) Create(ctx context.Context, spent *reconciliationDomain.SpentToken) error {
	return m.Called(ctx, spent).Error(0)
}

// Get mocks the Get method.
func (m *MockSpentTokenRepository) Get(
	ctx context.Context,
	tokenID uuid.UUID,
) (*reconciliationDomain.SpentToken, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliationDomain.SpentToken), args.Error(1)
}

// MockAllocationRepository is a mock implementation of AllocationRepository.
type MockAllocationRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockAllocationRepository) Create(ctx context.Context, allocation *reconciliationDomain.Allocation) error {
	return m.Called(ctx, allocation).Error(0)
}

// Ensure mocks the Ensure method.
func (m *MockAllocationRepository) Ensure(ctx context.Context, allocation *reconciliationDomain.Allocation) error {
	return m.Called(ctx, allocation).Error(0)
}

// Consume mocks the Consume method.
func (m *MockAllocationRepository) Consume(
	ctx context.Context,
	tokenID uuid.UUID,
	rootTokenID uuid.UUID,
	amount decimal.Decimal,
	redemptionID uuid.UUID,
	now time.Time,
) (bool, error) {
	args := m.Called(ctx, tokenID, rootTokenID, amount, redemptionID, now)
	return args.Bool(0), args.Error(1)
}

// Get mocks the Get method.
func (m *MockAllocationRepository) Get(
	ctx context.Context,
	tokenID uuid.UUID,
) (*reconciliationDomain.Allocation, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliationDomain.Allocation), args.Error(1)
}

// GetForUpdate mocks the GetForUpdate method.
func (m *MockAllocationRepository) GetForUpdate(
	ctx context.Context,
	tokenID uuid.UUID,
) (*reconciliationDomain.Allocation, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliationDomain.Allocation), args.Error(1)
}

// Close mocks the Close method.
func (m *MockAllocationRepository) Close(ctx context.Context, tokenID uuid.UUID, now time.Time) error {
	return m.Called(ctx, tokenID, now).Error(0)
}

// MockAuditRepository is a mock implementation of AuditRepository.
type MockAuditRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockAuditRepository) Create(ctx context.Context, audit *reconciliationDomain.DoubleSpendAudit) error {
	return m.Called(ctx, audit).Error(0)
}

// Get mocks the Get method.
func (m *MockAuditRepository) Get(
	ctx context.Context,
	auditID uuid.UUID,
) (*reconciliationDomain.DoubleSpendAudit, error) {
	args := m.Called(ctx, auditID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliationDomain.DoubleSpendAudit), args.Error(1)
}

// List mocks the List method.
func (m *MockAuditRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*reconciliationDomain.DoubleSpendAudit, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reconciliationDomain.DoubleSpendAudit), args.Error(1)
}

// MockOutboxEventRepository is a mock implementation of OutboxEventRepository.
type MockOutboxEventRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockOutboxEventRepository) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

// MockReconciliationUseCase is a mock implementation of ReconciliationUseCase.
type MockReconciliationUseCase struct {
	mock.Mock
}

// Redeem mocks the Redeem method.
func (m *MockReconciliationUseCase) Redeem(
	ctx context.Context,
	accountID uuid.UUID,
	claims []tokenDomain.RedemptionClaim,
) ([]tokenDomain.RedemptionResult, error) {
	args := m.Called(ctx, accountID, claims)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tokenDomain.RedemptionResult), args.Error(1)
}

// MockAuditUseCase is a mock implementation of AuditUseCase.
type MockAuditUseCase struct {
	mock.Mock
}

// List mocks the List method.
func (m *MockAuditUseCase) List(
	ctx context.Context,
	offset, limit int,
) ([]*reconciliationDomain.DoubleSpendAudit, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reconciliationDomain.DoubleSpendAudit), args.Error(1)
}

// Verify mocks the Verify method.
func (m *MockAuditUseCase) Verify(ctx context.Context) (*reconciliationDomain.VerificationReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliationDomain.VerificationReport), args.Error(1)
}
