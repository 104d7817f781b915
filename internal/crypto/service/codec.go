// Package service provides the signing primitives shared by the issuer, the authority and
// holder devices, plus KMS access for wrapped issuer keys.
package service

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	apperrors "github.com/allisson/offcash/internal/errors"
)

// SignatureSize is the length of a recoverable secp256k1 signature [R || S || V].
const SignatureSize = 65

// SignatureCodec signs and verifies canonical payloads.
type SignatureCodec interface {
	// Sign hashes payload with Keccak-256 and signs the digest.
	Sign(payload []byte, key *cryptoDomain.PrivateKey) ([]byte, error)

	// Verify reports whether signature is valid for payload under publicKey.
	// It never errors: malformed inputs simply fail verification.
	Verify(payload, signature []byte, publicKey cryptoDomain.PublicKey) bool
}

type secp256k1Codec struct{}

// NewSignatureCodec returns the secp256k1/Keccak-256 codec used across the system.
func NewSignatureCodec() SignatureCodec {
	return &secp256k1Codec{}
}

// Digest returns the Keccak-256 hash signatures are computed over.
func Digest(payload []byte) []byte {
	return ethcrypto.Keccak256(payload)
}

func (c *secp256k1Codec) Sign(payload []byte, key *cryptoDomain.PrivateKey) ([]byte, error) {
	if key == nil || key.ECDSA() == nil {
		return nil, cryptoDomain.ErrInvalidPrivateKey
	}
	sig, err := ethcrypto.Sign(Digest(payload), key.ECDSA())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCryptographic, err.Error())
	}
	return sig, nil
}

func (c *secp256k1Codec) Verify(payload, signature []byte, publicKey cryptoDomain.PublicKey) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if len(signature) != SignatureSize {
		return false
	}
	if publicKey.Validate() != nil {
		return false
	}
	return ethcrypto.VerifySignature(publicKey, Digest(payload), signature[:SignatureSize-1])
}
