// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	issuanceDomain "github.com/allisson/offcash/internal/issuance/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
	customValidation "github.com/allisson/offcash/internal/validation"
)

// IssueRequest asks for tokens backed by a funded account.
type IssueRequest struct {
	AccountID       string `json:"account_id"`
	HolderPublicKey string `json:"holder_public_key"` // base58 compressed secp256k1 key
	Amount          string `json:"amount"`            // Decimal string, e.g. "25.00"
	ValiditySeconds int64  `json:"validity_seconds,omitempty"`
}

// Validate checks if the issue request is valid.
func (r *IssueRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AccountID, validation.Required, customValidation.UUID),
		validation.Field(&r.HolderPublicKey, validation.Required, customValidation.PublicKey),
		validation.Field(&r.Amount, validation.Required, customValidation.DecimalAmount),
		validation.Field(&r.ValiditySeconds, validation.Min(int64(0))),
	)
}

// ToInput converts a validated request into the use case input.
func (r *IssueRequest) ToInput() (issuanceDomain.IssueInput, error) {
	accountID, err := uuid.Parse(r.AccountID)
	if err != nil {
		return issuanceDomain.IssueInput{}, err
	}
	key, err := cryptoDomain.ParsePublicKey(r.HolderPublicKey)
	if err != nil {
		return issuanceDomain.IssueInput{}, err
	}
	amount, err := tokenDomain.ParseAmount(r.Amount)
	if err != nil {
		return issuanceDomain.IssueInput{}, err
	}
	return issuanceDomain.IssueInput{
		AccountID:       accountID,
		HolderPublicKey: key,
		Amount:          amount,
		Validity:        time.Duration(r.ValiditySeconds) * time.Second,
	}, nil
}
