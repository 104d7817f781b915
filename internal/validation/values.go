package validation

import (
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// PublicKey validates that a string is a base58 compressed secp256k1 public key.
var PublicKey = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_public_key_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	if _, err := cryptoDomain.ParsePublicKey(s); err != nil {
		return validation.NewError("validation_public_key", "must be a base58 compressed secp256k1 public key")
	}
	return nil
})

// DecimalAmount validates that a string is a positive amount with at most two decimal places.
var DecimalAmount = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_amount_type", "must be a string")
	}
	if s == "" {
		return nil
	}
	if _, err := tokenDomain.ParseAmount(s); err != nil {
		return validation.NewError("validation_amount", "must be a positive amount with at most two decimal places")
	}
	return nil
})

// UUID validates that a string is a canonical UUID.
var UUID = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_uuid_type", "must be a string")
	}
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
})
