package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// IssuedToken is the issuance record of a root token. The expiration sweep scans it and
// redemption marks it settled once its whole value is consumed.
type IssuedToken struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	OwnerPublicKey cryptoDomain.PublicKey
	Amount         decimal.Decimal
	Signature      []byte
	Status         tokenDomain.Status
	IssuedAt       time.Time
	ExpiresAt      time.Time
	SettledAt      *time.Time
}

// NewIssuedToken records token as issued against accountID.
func NewIssuedToken(accountID uuid.UUID, token *tokenDomain.Token) *IssuedToken {
	return &IssuedToken{
		ID:             token.ID,
		AccountID:      accountID,
		OwnerPublicKey: token.OwnerPublicKey,
		Amount:         token.Amount,
		Signature:      token.Signature,
		Status:         tokenDomain.StatusActive,
		IssuedAt:       token.IssuedAt,
		ExpiresAt:      token.ExpiresAt,
	}
}

// Token rebuilds the signed root token.
func (i *IssuedToken) Token() tokenDomain.Token {
	return tokenDomain.Token{
		ID:             i.ID,
		Amount:         i.Amount,
		OwnerPublicKey: i.OwnerPublicKey,
		IssuedAt:       i.IssuedAt,
		ExpiresAt:      i.ExpiresAt,
		Signature:      i.Signature,
		Status:         i.Status,
	}
}
