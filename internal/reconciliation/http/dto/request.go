// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	tokenDomain "github.com/allisson/offcash/internal/token/domain"
	customValidation "github.com/allisson/offcash/internal/validation"
)

// MaxClaimsPerRequest caps how many claims one redeem call may carry.
const MaxClaimsPerRequest = 100

// RedeemRequest submits offline-created claims for settlement into an account.
type RedeemRequest struct {
	AccountID string                        `json:"account_id"`
	Claims    []tokenDomain.RedemptionClaim `json:"claims"`
}

// Validate checks if the redeem request is valid. Signatures are checked by the engine.
func (r *RedeemRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AccountID, validation.Required, customValidation.UUID),
		validation.Field(&r.Claims, validation.Required, validation.Length(1, MaxClaimsPerRequest)),
	)
}
