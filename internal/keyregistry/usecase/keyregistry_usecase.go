package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	keyregistryDomain "github.com/allisson/offcash/internal/keyregistry/domain"
)

type keyRegistryUseCase struct {
	repo PublicKeyRepository
	now  func() time.Time
}

func (k *keyRegistryUseCase) Register(
	ctx context.Context,
	identifier string,
	publicKey cryptoDomain.PublicKey,
	expiresAt *time.Time,
) (*keyregistryDomain.RegisteredKey, error) {
	now := k.now()
	key, err := keyregistryDomain.NewRegisteredKey(keyregistryDomain.KeyTypeHolder, identifier, publicKey, expiresAt, now)
	if err != nil {
		return nil, err
	}
	if key.IsExpired(now) {
		return nil, keyregistryDomain.ErrKeyExpired
	}
	if err := k.repo.Create(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (k *keyRegistryUseCase) Lookup(
	ctx context.Context,
	keyType keyregistryDomain.KeyType,
	identifier string,
) (*keyregistryDomain.RegisteredKey, error) {
	key, err := k.repo.Get(ctx, keyType, identifier)
	if err != nil {
		return nil, err
	}
	if key.IsExpired(k.now()) {
		return nil, keyregistryDomain.ErrKeyExpired
	}
	return key, nil
}

// PublishIssuerKey upserts the issuer key. A zero validity publishes a key without expiry.
func (k *keyRegistryUseCase) PublishIssuerKey(
	ctx context.Context,
	identifier string,
	publicKey cryptoDomain.PublicKey,
	validity time.Duration,
) error {
	now := k.now()
	var expiresAt *time.Time
	if validity > 0 {
		t := now.Add(validity)
		expiresAt = &t
	}
	key, err := keyregistryDomain.NewRegisteredKey(keyregistryDomain.KeyTypeIssuer, identifier, publicKey, expiresAt, now)
	if err != nil {
		return err
	}
	return k.repo.Upsert(ctx, key)
}

// NewKeyRegistryUseCase creates a new KeyRegistryUseCase.
func NewKeyRegistryUseCase(repo PublicKeyRepository) KeyRegistryUseCase {
	return &keyRegistryUseCase{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}
