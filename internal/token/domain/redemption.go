package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
)

// RedemptionClaim is what a holder submits once online: a token, its full lineage and a
// signature by the token's owner key proving possession.
type RedemptionClaim struct {
	Token             Token   `json:"token"`
	Lineage           Lineage `json:"lineage"`
	ClaimantSignature []byte  `json:"claimant_signature"`
}

// NewRedemptionClaim builds a claim for token redeemed into accountID, signed by owner.
func NewRedemptionClaim(
	signer Signer,
	owner *cryptoDomain.PrivateKey,
	accountID uuid.UUID,
	token Token,
	lineage Lineage,
) (*RedemptionClaim, error) {
	sig, err := signer.Sign(token.ClaimPayload(accountID), owner)
	if err != nil {
		return nil, err
	}
	return &RedemptionClaim{Token: token, Lineage: lineage, ClaimantSignature: sig}, nil
}

// Verify checks the claimant signature and the full signature chain. Expiry is left to the
// caller so it can be checked against authoritative time.
func (c *RedemptionClaim) Verify(verifier Verifier, issuerKey cryptoDomain.PublicKey, accountID uuid.UUID) error {
	if !verifier.Verify(c.Token.ClaimPayload(accountID), c.ClaimantSignature, c.Token.OwnerPublicKey) {
		return ErrClaimSignatureInvalid
	}
	return VerifyChain(verifier, issuerKey, &c.Token, c.Lineage)
}

// Chain returns the lineage followed by the claimed token, root first.
func (c *RedemptionClaim) Chain() []Token {
	return []Token(c.Lineage.Extend(c.Token))
}

// Root returns the issuer-minted token the claim descends from.
func (c *RedemptionClaim) Root() Token {
	if len(c.Lineage) == 0 {
		return c.Token
	}
	return c.Lineage[0]
}

// RedemptionResult is the authoritative verdict for one claim.
type RedemptionResult struct {
	TokenID                 uuid.UUID       `json:"token_id"`
	Outcome                 Outcome         `json:"outcome"`
	Amount                  decimal.Decimal `json:"amount"`
	Reason                  string          `json:"reason,omitempty"`
	RedemptionID            *uuid.UUID      `json:"redemption_id,omitempty"`
	ConflictingRedemptionID *uuid.UUID      `json:"conflicting_redemption_id,omitempty"`
	SettledAt               time.Time       `json:"settled_at"`
}

// TokenStatus maps the outcome to the status the holder applies to its local copy.
// Invalid claims leave the local token untouched.
func (r *RedemptionResult) TokenStatus() (Status, bool) {
	switch r.Outcome {
	case OutcomeRedeemed:
		return StatusRedeemed, true
	case OutcomeDoubleSpendRejected:
		return StatusDoubleSpendFlagged, true
	default:
		return "", false
	}
}
