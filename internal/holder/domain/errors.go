package domain

import (
	"github.com/allisson/offcash/internal/errors"
)

var (
	// ErrInsufficientBalance indicates the spendable tokens cannot cover the requested amount.
	ErrInsufficientBalance = errors.Wrap(errors.ErrInsufficientBalance, "insufficient spendable balance")

	// ErrHoldingNotFound indicates the token is not held by this device.
	ErrHoldingNotFound = errors.Wrap(errors.ErrNotFound, "token not held")

	// ErrIssuerKeyNotCached indicates no issuer key was fetched while online.
	ErrIssuerKeyNotCached = errors.Wrap(errors.ErrNotFound, "issuer key not cached")

	// ErrTokenNotOwned indicates a token handed to the device that its key cannot spend.
	ErrTokenNotOwned = errors.Wrap(errors.ErrInvalidInput, "token not owned by this device")

	// ErrDeviceKeyNotFound indicates keygen has not been run for this device.
	ErrDeviceKeyNotFound = errors.Wrap(errors.ErrNotFound, "device key not found")

	// ErrDeviceKeyExists indicates the device already has a signing key.
	ErrDeviceKeyExists = errors.Wrap(errors.ErrConflict, "device key already exists")

	// ErrTransferNotFound indicates no incoming transfer is recorded under the replay key.
	ErrTransferNotFound = errors.Wrap(errors.ErrNotFound, "transfer not found")

	// ErrSessionNotFound indicates no pending outgoing session with the given id.
	ErrSessionNotFound = errors.Wrap(errors.ErrNotFound, "transfer session not found")

	// ErrReplayDetected indicates a different record reusing inputs and sequence number already seen.
	ErrReplayDetected = errors.Wrap(errors.ErrConflict, "transfer replay detected")

	// ErrTokenAlreadyHeld indicates an incoming token whose id is already used by a held token.
	ErrTokenAlreadyHeld = errors.Wrap(errors.ErrConflict, "token id already held")

	// ErrTokenReserved indicates the token is pinned by another reservation.
	ErrTokenReserved = errors.Wrap(errors.ErrConflict, "token reserved by another transfer")

	// ErrDivisionRounding indicates an amount that cannot be split exactly at AmountScale.
	ErrDivisionRounding = errors.Wrap(errors.ErrDivisionRounding, "amount cannot be divided exactly")

	// ErrInsufficientSources indicates the reserved sources do not cover the amount to divide.
	ErrInsufficientSources = errors.Wrap(errors.ErrInsufficientBalance, "sources do not cover amount")

	// ErrSourceNotOwned indicates a source token owned by a different key than the spender.
	ErrSourceNotOwned = errors.Wrap(errors.ErrInvalidInput, "source token not owned by spender")
)
