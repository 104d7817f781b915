package domain

import (
	"github.com/allisson/offcash/internal/errors"
)

var (
	// ErrKeyNotFound indicates no key is registered for the type and identifier.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "public key not found")

	// ErrKeyAlreadyRegistered indicates the identifier already has a key of the same type.
	ErrKeyAlreadyRegistered = errors.Wrap(errors.ErrConflict, "public key already registered")

	// ErrInvalidKeyType indicates a key type other than issuer or holder.
	ErrInvalidKeyType = errors.Wrap(errors.ErrInvalidInput, "invalid key type")

	// ErrInvalidIdentifier indicates an empty or oversized identifier.
	ErrInvalidIdentifier = errors.Wrap(errors.ErrInvalidInput, "invalid key identifier")

	// ErrKeyExpired indicates the registered key is past its expiry.
	ErrKeyExpired = errors.Wrap(errors.ErrExpired, "public key expired")
)
