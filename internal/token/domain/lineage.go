package domain

import (
	"time"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
)

// VerifyChain checks every signature from the issuer down to token.
//
// The root must verify against issuerKey and each later link against the key of the owner
// of its parent. Parent links must match and every derived id must be the one DerivedTokenID
// gives. Amounts may never grow along the chain and every token shares the root's expiry.
func VerifyChain(
	verifier Verifier,
	issuerKey cryptoDomain.PublicKey,
	token *Token,
	lineage Lineage,
) error {
	chain := make([]*Token, 0, len(lineage)+1)
	for i := range lineage {
		chain = append(chain, &lineage[i])
	}
	chain = append(chain, token)

	root := chain[0]
	if !root.IsRoot() {
		return ErrBrokenLineage
	}
	if err := ValidateAmount(root.Amount); err != nil {
		return ErrValueNotConserved
	}
	if !verifier.Verify(root.SigningPayload(), root.Signature, issuerKey) {
		return ErrIssuerSignatureInvalid
	}

	for i := 1; i < len(chain); i++ {
		parent, child := chain[i-1], chain[i]
		if child.ParentID == nil || *child.ParentID != parent.ID {
			return ErrBrokenLineage
		}
		if child.ID != DerivedTokenID(parent.ID, child.SequenceNumber, child.OutputIndex, child.OwnerPublicKey) {
			return ErrTokenIDMismatch
		}
		if !child.ExpiresAt.Equal(parent.ExpiresAt) {
			return ErrBrokenLineage
		}
		if err := ValidateAmount(child.Amount); err != nil || child.Amount.GreaterThan(parent.Amount) {
			return ErrValueNotConserved
		}
		if !verifier.Verify(child.SigningPayload(), child.Signature, parent.OwnerPublicKey) {
			return ErrLinkSignatureInvalid
		}
	}
	return nil
}

// VerifyLineage runs VerifyChain and then checks the token is unexpired at now.
func VerifyLineage(
	verifier Verifier,
	issuerKey cryptoDomain.PublicKey,
	token *Token,
	lineage Lineage,
	now time.Time,
) error {
	if err := VerifyChain(verifier, issuerKey, token, lineage); err != nil {
		return err
	}
	if token.IsExpired(now) {
		return ErrTokenExpired
	}
	return nil
}

// Extend returns the lineage of a child of token, i.e. l followed by token.
func (l Lineage) Extend(token Token) Lineage {
	out := make(Lineage, 0, len(l)+1)
	out = append(out, l...)
	return append(out, token)
}
