// Package usecase implements registration and lookup of issuer and holder public keys.
package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	keyregistryDomain "github.com/allisson/offcash/internal/keyregistry/domain"
)

// PublicKeyRepository defines the interface for public key persistence.
type PublicKeyRepository interface {
	Create(ctx context.Context, key *keyregistryDomain.RegisteredKey) error
	Upsert(ctx context.Context, key *keyregistryDomain.RegisteredKey) error
	Get(
		ctx context.Context,
		keyType keyregistryDomain.KeyType,
		identifier string,
	) (*keyregistryDomain.RegisteredKey, error)
}

// KeyRegistryUseCase defines the key registry business logic.
type KeyRegistryUseCase interface {
	// Register stores a holder key. Re-registering an identifier is a conflict.
	Register(
		ctx context.Context,
		identifier string,
		publicKey cryptoDomain.PublicKey,
		expiresAt *time.Time,
	) (*keyregistryDomain.RegisteredKey, error)

	// Lookup returns a registered key, or ErrKeyExpired once it is past its expiry.
	Lookup(
		ctx context.Context,
		keyType keyregistryDomain.KeyType,
		identifier string,
	) (*keyregistryDomain.RegisteredKey, error)

	// PublishIssuerKey makes the current issuer verification key available to holders.
	PublishIssuerKey(
		ctx context.Context,
		identifier string,
		publicKey cryptoDomain.PublicKey,
		validity time.Duration,
	) error
}
