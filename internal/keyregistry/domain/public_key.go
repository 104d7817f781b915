// Package domain defines the public key registry used to distribute the issuer verification
// key and holder keys to devices before they go offline.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
)

const maxIdentifierLength = 255

// KeyType separates issuer keys from holder keys sharing an identifier namespace.
type KeyType string

const (
	KeyTypeIssuer KeyType = "issuer"
	KeyTypeHolder KeyType = "holder"
)

// ParseKeyType validates s as a known key type.
func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(s) {
	case KeyTypeIssuer, KeyTypeHolder:
		return KeyType(s), nil
	default:
		return "", ErrInvalidKeyType
	}
}

// RegisteredKey is a public key published under (KeyType, Identifier).
type RegisteredKey struct {
	ID         uuid.UUID
	KeyType    KeyType
	Identifier string
	PublicKey  cryptoDomain.PublicKey
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// NewRegisteredKey validates the input and builds a record. A nil expiresAt never expires.
func NewRegisteredKey(
	keyType KeyType,
	identifier string,
	publicKey cryptoDomain.PublicKey,
	expiresAt *time.Time,
	now time.Time,
) (*RegisteredKey, error) {
	if _, err := ParseKeyType(string(keyType)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(identifier) == "" || len(identifier) > maxIdentifierLength {
		return nil, ErrInvalidIdentifier
	}
	if err := publicKey.Validate(); err != nil {
		return nil, err
	}
	if expiresAt != nil {
		utc := expiresAt.UTC()
		expiresAt = &utc
	}
	return &RegisteredKey{
		ID:         uuid.Must(uuid.NewV7()),
		KeyType:    keyType,
		Identifier: identifier,
		PublicKey:  publicKey,
		ExpiresAt:  expiresAt,
		CreatedAt:  now.UTC(),
	}, nil
}

// IsExpired reports whether the key expired at or before now.
func (r *RegisteredKey) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
