package domain

import (
	"github.com/allisson/offcash/internal/errors"
)

var (
	// ErrTokenNotFound indicates the token was not found.
	ErrTokenNotFound = errors.Wrap(errors.ErrNotFound, "token not found")

	// ErrInvalidAmount indicates a non-positive amount or one with more precision than AmountScale.
	ErrInvalidAmount = errors.Wrap(errors.ErrInvalidInput, "invalid amount")

	// ErrInvalidStatus indicates an unknown token status.
	ErrInvalidStatus = errors.Wrap(errors.ErrInvalidInput, "invalid token status")

	// ErrInvalidStatusTransition indicates a transition out of a terminal or incompatible status.
	ErrInvalidStatusTransition = errors.Wrap(errors.ErrConflict, "invalid token status transition")

	// ErrIssuerSignatureInvalid indicates the root of a lineage was not signed by the issuer.
	ErrIssuerSignatureInvalid = errors.Wrap(errors.ErrCryptographic, "issuer signature invalid")

	// ErrLinkSignatureInvalid indicates a derived token not signed by its parent's owner.
	ErrLinkSignatureInvalid = errors.Wrap(errors.ErrCryptographic, "lineage signature invalid")

	// ErrBrokenLineage indicates missing or mismatched parent links.
	ErrBrokenLineage = errors.Wrap(errors.ErrCryptographic, "broken token lineage")

	// ErrTokenIDMismatch indicates a derived token whose id is not the one fixed by its parent,
	// sequence number, output index and owner.
	ErrTokenIDMismatch = errors.Wrap(errors.ErrCryptographic, "derived token id mismatch")

	// ErrValueNotConserved indicates derived tokens that exceed the value of their parent.
	ErrValueNotConserved = errors.Wrap(errors.ErrCryptographic, "value not conserved")

	// ErrTransferSignatureInvalid indicates a transfer record whose sender signature does not verify.
	ErrTransferSignatureInvalid = errors.Wrap(errors.ErrCryptographic, "transfer signature invalid")

	// ErrAcknowledgementInvalid indicates a receiver acknowledgement that does not verify.
	ErrAcknowledgementInvalid = errors.Wrap(errors.ErrCryptographic, "transfer acknowledgement invalid")

	// ErrClaimSignatureInvalid indicates a claim not signed by the final owner of the token.
	ErrClaimSignatureInvalid = errors.Wrap(errors.ErrCryptographic, "claimant signature invalid")

	// ErrTokenExpired indicates the token is past its validity window.
	ErrTokenExpired = errors.Wrap(errors.ErrExpired, "token has expired")

	// ErrTokenAlreadySpent indicates the token id, or value it depends on, was already redeemed.
	ErrTokenAlreadySpent = errors.Wrap(errors.ErrDoubleSpend, "token already spent")
)
