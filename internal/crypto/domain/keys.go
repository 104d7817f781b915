// Package domain defines key material shared by the issuer, the authority and holder devices.
//
// All keys live on the secp256k1 curve so the same key pair is valid for offline token
// signatures and for on-chain settlement. Public keys travel in compressed form (33 bytes)
// and are rendered as base58 text on the wire and in storage.
package domain

import (
	"crypto/ecdsa"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// CompressedPublicKeySize is the length of a compressed secp256k1 public key.
const CompressedPublicKeySize = 33

// PublicKey is a compressed secp256k1 public key.
type PublicKey []byte

// ParsePublicKey decodes a base58 compressed public key and checks that it is a curve point.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	key := PublicKey(raw)
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

// Validate checks length and curve membership.
func (k PublicKey) Validate() error {
	if len(k) != CompressedPublicKeySize {
		return ErrInvalidPublicKey
	}
	if _, err := ethcrypto.DecompressPubkey(k); err != nil {
		return ErrInvalidPublicKey
	}
	return nil
}

// String returns the base58 encoding of the key.
func (k PublicKey) String() string {
	return base58.Encode(k)
}

// Equal reports whether both keys have the same bytes.
func (k PublicKey) Equal(other PublicKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Address returns the settlement ledger address derived from the key.
// Returns an empty string for keys that are not on the curve.
func (k PublicKey) Address() string {
	pub, err := ethcrypto.DecompressPubkey(k)
	if err != nil {
		return ""
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex()
}

// MarshalJSON encodes the key as a base58 string.
func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a base58 string. Empty strings decode to a nil key.
func (k *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*k = nil
		return nil
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return ErrInvalidPublicKey
	}
	*k = raw
	return nil
}

// Value implements driver.Valuer so keys are stored as base58 text.
func (k PublicKey) Value() (driver.Value, error) {
	return k.String(), nil
}

// Scan implements sql.Scanner for base58 text columns.
func (k *PublicKey) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*k = nil
		return nil
	default:
		return fmt.Errorf("unsupported public key column type %T", src)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return ErrInvalidPublicKey
	}
	*k = raw
	return nil
}

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// GeneratePrivateKey creates a fresh random key pair.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// ParsePrivateKeyHex decodes a hex encoded 32-byte scalar.
func ParsePrivateKeyHex(s string) (*PrivateKey, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes decodes a raw 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return &PrivateKey{key: key}, nil
}

// ECDSA exposes the underlying key for signing.
func (p *PrivateKey) ECDSA() *ecdsa.PrivateKey {
	return p.key
}

// PublicKey returns the compressed public key.
func (p *PrivateKey) PublicKey() PublicKey {
	return PublicKey(ethcrypto.CompressPubkey(&p.key.PublicKey))
}

// Bytes returns the raw scalar. Callers must Zero the result once done.
func (p *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(p.key)
}

// Hex returns the hex encoded scalar.
func (p *PrivateKey) Hex() string {
	b := p.Bytes()
	defer Zero(b)
	return hex.EncodeToString(b)
}
