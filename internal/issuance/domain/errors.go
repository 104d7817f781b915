package domain

import (
	"github.com/allisson/offcash/internal/errors"
)

var (
	// ErrInvalidValidity indicates a negative validity window or one above the issuer maximum.
	ErrInvalidValidity = errors.Wrap(errors.ErrInvalidInput, "invalid token validity")

	// ErrTooManyTokens indicates an issue request that would split into too many tokens.
	ErrTooManyTokens = errors.Wrap(errors.ErrInvalidInput, "amount splits into too many tokens")
)
