package dto

import (
	"encoding/base64"
	"encoding/json"
	"time"

	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// RedeemResponse carries one result per submitted claim, in submission order.
type RedeemResponse struct {
	Results []tokenDomain.RedemptionResult `json:"results"`
}

// AuditResponse represents a double-spend audit record in API responses.
type AuditResponse struct {
	ID                      string          `json:"id"`
	TokenID                 string          `json:"token_id"`
	ConflictingTokenID      string          `json:"conflicting_token_id"`
	ConflictingRedemptionID *string         `json:"conflicting_redemption_id,omitempty"`
	AccountID               string          `json:"account_id"`
	Reason                  string          `json:"reason"`
	Claim                   json.RawMessage `json:"claim"`
	Signature               string          `json:"signature"`
	CreatedAt               time.Time       `json:"created_at"`
}

// ListAuditsResponse wraps a page of audits.
type ListAuditsResponse struct {
	Data []AuditResponse `json:"data"`
}

// MapAuditsToListResponse converts domain audits to a list response.
func MapAuditsToListResponse(audits []*reconciliationDomain.DoubleSpendAudit) ListAuditsResponse {
	data := make([]AuditResponse, 0, len(audits))
	for _, a := range audits {
		item := AuditResponse{
			ID:                 a.ID.String(),
			TokenID:            a.TokenID.String(),
			ConflictingTokenID: a.ConflictingTokenID.String(),
			AccountID:          a.AccountID.String(),
			Reason:             a.Reason,
			Claim:              json.RawMessage(a.Claim),
			Signature:          base64.StdEncoding.EncodeToString(a.Signature),
			CreatedAt:          a.CreatedAt,
		}
		if a.ConflictingRedemptionID != nil {
			ref := a.ConflictingRedemptionID.String()
			item.ConflictingRedemptionID = &ref
		}
		data = append(data, item)
	}
	return ListAuditsResponse{Data: data}
}
