package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
)

// Signer produces signatures over canonical payloads.
type Signer interface {
	Sign(payload []byte, key *cryptoDomain.PrivateKey) ([]byte, error)
}

// Verifier checks signatures over canonical payloads. Implementations must not panic.
type Verifier interface {
	Verify(payload, signature []byte, publicKey cryptoDomain.PublicKey) bool
}

// Token is a signed, fixed-amount claim of value. Every field except Status is immutable once
// signed; a change of owner or amount always produces a new token linked through ParentID.
type Token struct {
	ID             uuid.UUID              `json:"id"`
	ParentID       *uuid.UUID             `json:"parent_id,omitempty"`
	Amount         decimal.Decimal        `json:"amount"`
	OwnerPublicKey cryptoDomain.PublicKey `json:"owner_public_key"`
	IssuedAt       time.Time              `json:"issued_at"`
	ExpiresAt      time.Time              `json:"expires_at"`
	SequenceNumber uint64                 `json:"sequence_number"`
	OutputIndex    uint32                 `json:"output_index,omitempty"`
	Signature      []byte                 `json:"signature"`
	Status         Status                 `json:"status"`
}

// Lineage holds the ancestors of a token ordered root first. A root token has an empty lineage.
type Lineage []Token

// IsRoot reports whether the token was minted by the issuer.
func (t *Token) IsRoot() bool {
	return t.ParentID == nil
}

// IsExpired reports whether the token is past its validity window at now.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.UTC().Before(t.ExpiresAt.UTC())
}

// IsSpendable reports whether the token is active and unexpired at now.
func (t *Token) IsSpendable(now time.Time) bool {
	return t.Status == StatusActive && !t.IsExpired(now)
}

// SigningPayload returns the canonical bytes covered by Signature.
//
// Root tokens bind (id, amount, owner, issuedAt, expiresAt). Derived tokens bind
// (id, parentId, amount, owner, issuedAt, expiresAt, sequenceNumber, outputIndex).
func (t *Token) SigningPayload() []byte {
	if t.IsRoot() {
		return cryptoDomain.NewCanonical(rootTokenTag).
			Fixed(t.ID[:]).
			String(FormatAmount(t.Amount)).
			Bytes(t.OwnerPublicKey).
			Time(t.IssuedAt).
			Time(t.ExpiresAt).
			Sum()
	}
	return cryptoDomain.NewCanonical(derivedTokenTag).
		Fixed(t.ID[:]).
		Fixed(t.ParentID[:]).
		String(FormatAmount(t.Amount)).
		Bytes(t.OwnerPublicKey).
		Time(t.IssuedAt).
		Time(t.ExpiresAt).
		Uint64(t.SequenceNumber).
		Uint64(uint64(t.OutputIndex)).
		Sum()
}

// Sign fills Signature using key.
func (t *Token) Sign(signer Signer, key *cryptoDomain.PrivateKey) error {
	sig, err := signer.Sign(t.SigningPayload(), key)
	if err != nil {
		return err
	}
	t.Signature = sig
	return nil
}

// NewRootToken builds an unsigned issuer token with a fresh UUIDv7.
func NewRootToken(
	amount decimal.Decimal,
	owner cryptoDomain.PublicKey,
	issuedAt time.Time,
	validity time.Duration,
) (*Token, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	issuedAt = issuedAt.UTC().Truncate(time.Microsecond)
	return &Token{
		ID:             uuid.Must(uuid.NewV7()),
		Amount:         amount,
		OwnerPublicKey: owner,
		IssuedAt:       issuedAt,
		ExpiresAt:      issuedAt.Add(validity),
		Status:         StatusActive,
	}, nil
}

// DerivedTokenID returns the id of the output at index of the division of parentID made under
// sequence for owner. Root ids are version 7, so a derived id never equals one.
func DerivedTokenID(parentID uuid.UUID, sequence uint64, index uint32, owner cryptoDomain.PublicKey) uuid.UUID {
	name := cryptoDomain.NewCanonical(derivedIDTag).
		Uint64(sequence).
		Uint64(uint64(index)).
		Bytes(owner).
		Sum()
	return uuid.NewSHA1(parentID, name)
}

// NewDerivedToken builds an unsigned child of parent owned by owner. The child inherits the
// parent's expiry and its id is fixed by DerivedTokenID.
func NewDerivedToken(
	parent *Token,
	amount decimal.Decimal,
	owner cryptoDomain.PublicKey,
	sequence uint64,
	index uint32,
	now time.Time,
) *Token {
	parentID := parent.ID
	return &Token{
		ID:             DerivedTokenID(parentID, sequence, index, owner),
		ParentID:       &parentID,
		Amount:         amount,
		OwnerPublicKey: owner,
		IssuedAt:       now.UTC().Truncate(time.Microsecond),
		ExpiresAt:      parent.ExpiresAt,
		SequenceNumber: sequence,
		OutputIndex:    index,
		Status:         StatusActive,
	}
}

// ClaimPayload returns the bytes a claimant signs to redeem the token into accountID.
func (t *Token) ClaimPayload(accountID uuid.UUID) []byte {
	return cryptoDomain.NewCanonical(claimTag).
		Fixed(accountID[:]).
		Bytes(t.SigningPayload()).
		Bytes(t.Signature).
		Sum()
}
