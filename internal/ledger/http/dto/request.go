// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/offcash/internal/validation"
)

// CreateAccountRequest contains the parameters for opening an account.
type CreateAccountRequest struct {
	Name string `json:"name"`
}

// Validate checks if the create account request is valid.
func (r *CreateAccountRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
	)
}

// FundAccountRequest contains the amount credited by the funding service.
type FundAccountRequest struct {
	Amount string `json:"amount"` // Decimal string, e.g. "100.00"
}

// Validate checks if the fund request is valid.
func (r *FundAccountRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Amount,
			validation.Required,
			customValidation.DecimalAmount,
		),
	)
}
