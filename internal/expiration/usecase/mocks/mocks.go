// Package mocks provides mock implementations of the expiration use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	expirationDomain "github.com/allisson/offcash/internal/expiration/domain"
)

// MockExpirationUseCase is a mock implementation of ExpirationUseCase.
type MockExpirationUseCase struct {
	mock.Mock
}

// Sweep mocks the Sweep method.
func (m *MockExpirationUseCase) Sweep(ctx context.Context, now time.Time) (*expirationDomain.SweepReport, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*expirationDomain.SweepReport), args.Error(1)
}

// Count mocks the Count method.
func (m *MockExpirationUseCase) Count(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// Start mocks the Start method.
func (m *MockExpirationUseCase) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
