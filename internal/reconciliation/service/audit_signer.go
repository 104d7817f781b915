// Package service provides the reconciliation services that sit beside the use case:
// signing of double-spend audit records.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	"github.com/allisson/offcash/internal/errors"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
)

const auditTag = "offcash/audit/double-spend/v1"

// ErrAuditSignatureInvalid indicates a stored audit record whose signature does not match.
var ErrAuditSignatureInvalid = errors.Wrap(errors.ErrCryptographic, "audit signature invalid")

// AuditSigner signs and verifies double-spend audit records.
type AuditSigner interface {
	Sign(audit *reconciliationDomain.DoubleSpendAudit) ([]byte, error)
	Verify(audit *reconciliationDomain.DoubleSpendAudit) error
}

type auditSigner struct {
	secret []byte
}

// NewAuditSigner creates an HMAC-SHA256 audit signer. The signing key is derived from
// secret with HKDF-SHA256 so the secret can be shared with other key usages.
func NewAuditSigner(secret []byte) AuditSigner {
	s := make([]byte, len(secret))
	copy(s, secret)
	return &auditSigner{secret: s}
}

// deriveSigningKey derives a 32-byte signing key. The info string is versioned.
func (a *auditSigner) deriveSigningKey() ([]byte, error) {
	reader := hkdf.New(sha256.New, a.secret, nil, []byte("double-spend-audit-v1"))

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, signingKey); err != nil {
		return nil, err
	}
	return signingKey, nil
}

// canonicalize covers every stored field except the signature itself.
func canonicalize(audit *reconciliationDomain.DoubleSpendAudit) []byte {
	c := cryptoDomain.NewCanonical(auditTag).
		Fixed(audit.ID[:]).
		Fixed(audit.TokenID[:]).
		Fixed(audit.ConflictingTokenID[:])
	if audit.ConflictingRedemptionID != nil {
		c.Bytes(audit.ConflictingRedemptionID[:])
	} else {
		c.Bytes(nil)
	}
	return c.Fixed(audit.AccountID[:]).
		String(audit.Claim).
		String(audit.Reason).
		Time(audit.CreatedAt).
		Sum()
}

// Sign returns the 32-byte HMAC of the audit record.
func (a *auditSigner) Sign(audit *reconciliationDomain.DoubleSpendAudit) ([]byte, error) {
	signingKey, err := a.deriveSigningKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer cryptoDomain.Zero(signingKey)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(canonicalize(audit))
	return mac.Sum(nil), nil
}

// Verify returns ErrAuditSignatureInvalid when the record was altered after signing.
func (a *auditSigner) Verify(audit *reconciliationDomain.DoubleSpendAudit) error {
	expected, err := a.Sign(audit)
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}
	if !hmac.Equal(audit.Signature, expected) {
		return ErrAuditSignatureInvalid
	}
	return nil
}
