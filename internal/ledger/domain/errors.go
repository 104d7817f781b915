package domain

import (
	"github.com/allisson/offcash/internal/errors"
)

var (
	// ErrAccountNotFound indicates the account was not found.
	ErrAccountNotFound = errors.Wrap(errors.ErrNotFound, "account not found")

	// ErrIssuedTokenNotFound indicates no issuance record exists for the token id.
	ErrIssuedTokenNotFound = errors.Wrap(errors.ErrNotFound, "issued token not found")

	// ErrInsufficientFunds indicates the account balance cannot back the requested issuance.
	ErrInsufficientFunds = errors.Wrap(errors.ErrInsufficientBalance, "insufficient funds")

	// ErrMovementAlreadyRecorded indicates a movement of the same kind already exists for the token.
	ErrMovementAlreadyRecorded = errors.Wrap(errors.ErrConflict, "ledger movement already recorded")

	// ErrInvalidAccountName indicates an empty account name.
	ErrInvalidAccountName = errors.Wrap(errors.ErrInvalidInput, "invalid account name")
)
