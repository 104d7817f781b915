package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	cryptoService "github.com/allisson/offcash/internal/crypto/service"
)

// RunCreateIssuerKey generates a secp256k1 issuer signing key and prints it wrapped by KMS.
// If keyID is empty, generates a default ID in format "issuer-YYYY-MM-DD".
//
// For local development, use kmsKeyURI="base64key://<32-byte-base64-key>".
//
// Output format:
//   - KMS_KEY_URI="<uri>"
//   - ISSUER_KEY_ID="<keyID>"
//   - ISSUER_PRIVATE_KEY="<base64-encoded-kms-ciphertext>"
func RunCreateIssuerKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID string,
	kmsKeyURI string,
) error {
	if kmsKeyURI == "" {
		return fmt.Errorf(
			"--kms-key-uri is required\n\nFor local development, use:\n  --kms-key-uri=\"base64key://<32-byte-base64-key>\"\n\nFor production, use a cloud KMS:\n  --kms-key-uri=\"gcpkms://projects/.../cryptoKeys/...\"\n  --kms-key-uri=\"awskms:///alias/...\"\n  --kms-key-uri=\"azurekeyvault://...\"\n  --kms-key-uri=\"hashivault://...\"",
		)
	}

	if keyID == "" {
		keyID = fmt.Sprintf("issuer-%s", time.Now().Format("2006-01-02"))
	}

	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	key, err := cryptoDomain.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("failed to generate issuer key: %w", err)
	}

	wrapped, err := kmsService.WrapPrivateKey(ctx, keeper, key)
	if err != nil {
		return fmt.Errorf("failed to wrap issuer key with KMS: %w", err)
	}

	publicKey := key.PublicKey()
	logger.Info("issuer key created",
		slog.String("key_id", keyID),
		slog.String("address", publicKey.Address()),
	)

	_, _ = fmt.Fprintln(writer, "# Issuer Key Configuration (KMS Mode)")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintf(writer, "# Public key: %s\n", publicKey.String())
	_, _ = fmt.Fprintf(writer, "# Address:    %s\n", publicKey.Address())
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	_, _ = fmt.Fprintf(writer, "ISSUER_KEY_ID=\"%s\"\n", keyID)
	_, _ = fmt.Fprintf(writer, "ISSUER_PRIVATE_KEY=\"%s\"\n", wrapped)

	return nil
}
