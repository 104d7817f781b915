package service

import (
	"context"
	"log/slog"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	apperrors "github.com/allisson/offcash/internal/errors"
)

// LoadIssuerKey resolves the issuer signing key from configuration.
//
// With an empty kmsKeyURI the value is a hex encoded scalar. Otherwise it is the base64
// ciphertext produced by create-issuer-key and is unwrapped through the KMS keeper.
func LoadIssuerKey(
	ctx context.Context,
	kmsService KMSService,
	kmsKeyURI string,
	value string,
	logger *slog.Logger,
) (*cryptoDomain.PrivateKey, error) {
	if value == "" {
		return nil, apperrors.Wrap(cryptoDomain.ErrInvalidPrivateKey, "ISSUER_PRIVATE_KEY is not set")
	}

	if kmsKeyURI == "" {
		logger.Warn("issuer key loaded in plaintext, configure KMS_KEY_URI for production")
		return cryptoDomain.ParsePrivateKeyHex(value)
	}

	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	key, err := kmsService.UnwrapPrivateKey(ctx, keeper, value)
	if err != nil {
		return nil, err
	}

	logger.Info("issuer key unwrapped", slog.String("address", key.PublicKey().Address()))
	return key, nil
}
