package service

import (
	"context"
	"encoding/base64"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	apperrors "github.com/allisson/offcash/internal/errors"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KMSService opens keepers and wraps issuer private keys with them.
type KMSService interface {
	// OpenKeeper opens a secrets.Keeper for the configured KMS provider.
	// Returns an error if the KMS provider URI is invalid or connection fails.
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)

	// WrapPrivateKey encrypts the key scalar and returns it as base64 text.
	WrapPrivateKey(ctx context.Context, keeper cryptoDomain.KMSKeeper, key *cryptoDomain.PrivateKey) (string, error)

	// UnwrapPrivateKey reverses WrapPrivateKey.
	UnwrapPrivateKey(ctx context.Context, keeper cryptoDomain.KMSKeeper, wrapped string) (*cryptoDomain.PrivateKey, error)
}

type kmsService struct{}

// NewKMSService creates a new KMS service instance.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper opens a secrets.Keeper for the configured KMS provider using the keyURI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	if keyURI == "" {
		return nil, cryptoDomain.ErrKMSProviderNotSet
	}
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrKMSOpenKeeperFailed, err.Error())
	}
	return keeper, nil
}

func (k *kmsService) WrapPrivateKey(
	ctx context.Context,
	keeper cryptoDomain.KMSKeeper,
	key *cryptoDomain.PrivateKey,
) (string, error) {
	raw := key.Bytes()
	defer cryptoDomain.Zero(raw)

	ciphertext, err := keeper.Encrypt(ctx, raw)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to wrap private key")
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (k *kmsService) UnwrapPrivateKey(
	ctx context.Context,
	keeper cryptoDomain.KMSKeeper,
	wrapped string,
) (*cryptoDomain.PrivateKey, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(wrapped))
	if err != nil {
		return nil, cryptoDomain.ErrInvalidPrivateKey
	}

	raw, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrKMSDecryptionFailed, err.Error())
	}
	defer cryptoDomain.Zero(raw)

	return cryptoDomain.PrivateKeyFromBytes(raw)
}
