// Package testing provides shared test utilities for token lifecycle tests.
package testing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	cryptoService "github.com/allisson/offcash/internal/crypto/service"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// Fixture bundles an issuer key and codec so tests can mint and derive valid tokens.
type Fixture struct {
	Codec     cryptoService.SignatureCodec
	IssuerKey *cryptoDomain.PrivateKey
	Now       time.Time
}

// NewFixture creates a fixture with a fresh issuer key and a fixed clock.
func NewFixture() *Fixture {
	return &Fixture{
		Codec:     cryptoService.NewSignatureCodec(),
		IssuerKey: NewKey(),
		Now:       time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

// NewKey generates a key pair or panics.
func NewKey() *cryptoDomain.PrivateKey {
	key, err := cryptoDomain.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}
	return key
}

// Amount parses a decimal literal or panics.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Mint returns an issuer-signed root token owned by owner, valid for validity from f.Now.
func (f *Fixture) Mint(owner *cryptoDomain.PrivateKey, amount string, validity time.Duration) tokenDomain.Token {
	tok, err := tokenDomain.NewRootToken(Amount(amount), owner.PublicKey(), f.Now, validity)
	if err != nil {
		panic(err)
	}
	if err := tok.Sign(f.Codec, f.IssuerKey); err != nil {
		panic(err)
	}
	return *tok
}

// Derive returns the first output of a division of parent for newOwner, signed by parentOwner.
func (f *Fixture) Derive(
	parent tokenDomain.Token,
	parentOwner *cryptoDomain.PrivateKey,
	newOwner *cryptoDomain.PrivateKey,
	amount string,
	sequence uint64,
) tokenDomain.Token {
	return f.DeriveOutput(parent, parentOwner, newOwner, amount, sequence, 0)
}

// DeriveOutput is Derive for the output at index.
func (f *Fixture) DeriveOutput(
	parent tokenDomain.Token,
	parentOwner *cryptoDomain.PrivateKey,
	newOwner *cryptoDomain.PrivateKey,
	amount string,
	sequence uint64,
	index uint32,
) tokenDomain.Token {
	child := tokenDomain.NewDerivedToken(&parent, Amount(amount), newOwner.PublicKey(), sequence, index, f.Now)
	if err := child.Sign(f.Codec, parentOwner); err != nil {
		panic(err)
	}
	return *child
}

// Claim builds a signed redemption claim for accountID.
func (f *Fixture) Claim(
	owner *cryptoDomain.PrivateKey,
	accountID uuid.UUID,
	token tokenDomain.Token,
	lineage ...tokenDomain.Token,
) tokenDomain.RedemptionClaim {
	claim, err := tokenDomain.NewRedemptionClaim(f.Codec, owner, accountID, token, lineage)
	if err != nil {
		panic(err)
	}
	return *claim
}
