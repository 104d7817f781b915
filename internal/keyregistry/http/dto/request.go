// Package dto provides data transfer objects for the key registry endpoints.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/offcash/internal/validation"
)

// RegisterKeyRequest contains a holder key to publish.
type RegisterKeyRequest struct {
	Identifier string     `json:"identifier"`
	PublicKey  string     `json:"public_key"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Validate checks if the register request is valid.
func (r *RegisterKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Identifier,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 255),
		),
		validation.Field(&r.PublicKey,
			validation.Required,
			customValidation.PublicKey,
		),
	)
}
