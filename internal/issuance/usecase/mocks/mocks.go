// Package mocks provides mock implementations of the issuance use case interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	issuanceDomain "github.com/allisson/offcash/internal/issuance/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// MockIssuanceUseCase is a mock implementation of IssuanceUseCase.
type MockIssuanceUseCase struct {
	mock.Mock
}

// Issue mocks the Issue method.
func (m *MockIssuanceUseCase) Issue(
	ctx context.Context,
	input issuanceDomain.IssueInput,
) (*tokenDomain.Token, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tokenDomain.Token), args.Error(1)
}

// IssueBatch mocks the IssueBatch method.
func (m *MockIssuanceUseCase) IssueBatch(
	ctx context.Context,
	input issuanceDomain.IssueInput,
) ([]tokenDomain.Token, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tokenDomain.Token), args.Error(1)
}

// IssuerPublicKey mocks the IssuerPublicKey method.
func (m *MockIssuanceUseCase) IssuerPublicKey() cryptoDomain.PublicKey {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(cryptoDomain.PublicKey)
}
