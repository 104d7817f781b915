// Package mocks provides testify mocks for the key registry use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	keyregistryDomain "github.com/allisson/offcash/internal/keyregistry/domain"
)

// MockPublicKeyRepository is a mock implementation of usecase.PublicKeyRepository.
type MockPublicKeyRepository struct {
	mock.Mock
}

func (m *MockPublicKeyRepository) Create(ctx context.Context, key *keyregistryDomain.RegisteredKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockPublicKeyRepository) Upsert(ctx context.Context, key *keyregistryDomain.RegisteredKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockPublicKeyRepository) Get(
	ctx context.Context,
	keyType keyregistryDomain.KeyType,
	identifier string,
) (*keyregistryDomain.RegisteredKey, error) {
	args := m.Called(ctx, keyType, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keyregistryDomain.RegisteredKey), args.Error(1)
}

// MockKeyRegistryUseCase is a mock implementation of usecase.KeyRegistryUseCase.
type MockKeyRegistryUseCase struct {
	mock.Mock
}

func (m *MockKeyRegistryUseCase) Register(
	ctx context.Context,
	identifier string,
	publicKey cryptoDomain.PublicKey,
	expiresAt *time.Time,
) (*keyregistryDomain.RegisteredKey, error) {
	args := m.Called(ctx, identifier, publicKey, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keyregistryDomain.RegisteredKey), args.Error(1)
}

func (m *MockKeyRegistryUseCase) Lookup(
	ctx context.Context,
	keyType keyregistryDomain.KeyType,
	identifier string,
) (*keyregistryDomain.RegisteredKey, error) {
	args := m.Called(ctx, keyType, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keyregistryDomain.RegisteredKey), args.Error(1)
}

func (m *MockKeyRegistryUseCase) PublishIssuerKey(
	ctx context.Context,
	identifier string,
	publicKey cryptoDomain.PublicKey,
	validity time.Duration,
) error {
	return m.Called(ctx, identifier, publicKey, validity).Error(0)
}
