package domain

import (
	"github.com/allisson/offcash/internal/errors"
)

// Key and signature error definitions.
//
// These wrap the standard taxonomy from internal/errors so handlers can map them to
// HTTP status codes without knowing about curves or encodings.
var (
	// ErrInvalidPublicKey indicates a public key that is not a compressed secp256k1 point.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrInvalidPublicKey = errors.Wrap(errors.ErrInvalidInput, "invalid public key")

	// ErrInvalidPrivateKey indicates private key material that cannot be decoded.
	ErrInvalidPrivateKey = errors.Wrap(errors.ErrInvalidInput, "invalid private key")

	// ErrSignatureInvalid indicates a signature that does not verify against the expected key.
	//
	// The reason is intentionally not disclosed: callers treat every failure the same way
	// and reject the artifact whole.
	ErrSignatureInvalid = errors.Wrap(errors.ErrCryptographic, "signature invalid")

	// ErrKMSProviderNotSet indicates the issuer key is wrapped but no KMS key URI is configured.
	ErrKMSProviderNotSet = errors.New("KMS_KEY_URI is required to unwrap the issuer key")

	// ErrKMSOpenKeeperFailed indicates the KMS keeper could not be opened.
	ErrKMSOpenKeeperFailed = errors.New("failed to open KMS keeper")

	// ErrKMSDecryptionFailed indicates the KMS refused to unwrap the issuer key.
	ErrKMSDecryptionFailed = errors.New("failed to decrypt issuer key with KMS")
)
