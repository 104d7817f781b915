package domain

import (
	"github.com/allisson/offcash/internal/errors"
)

var (
	// ErrAllocationNotFound indicates no allocation row exists for the token id.
	ErrAllocationNotFound = errors.Wrap(errors.ErrNotFound, "token allocation not found")

	// ErrAllocationExhausted indicates the token, or one of its ancestors, has no value left.
	ErrAllocationExhausted = errors.Wrap(errors.ErrDoubleSpend, "token value already consumed")

	// ErrTokenIDCollision indicates a token id already recorded under a different root token.
	ErrTokenIDCollision = errors.Wrap(errors.ErrCryptographic, "token id recorded under another root")

	// ErrAuditNotFound indicates the double-spend audit record was not found.
	ErrAuditNotFound = errors.Wrap(errors.ErrNotFound, "double spend audit not found")

	// ErrUnknownIssuance indicates a correctly signed root token with no issuance record.
	ErrUnknownIssuance = errors.Wrap(errors.ErrCryptographic, "token was not issued by this authority")
)
