package dto

import (
	"time"

	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapAccountToResponse converts a domain account to an API response.
func MapAccountToResponse(account *ledgerDomain.Account) AccountResponse {
	return AccountResponse{
		ID:        account.ID.String(),
		Name:      account.Name,
		Balance:   tokenDomain.FormatAmount(account.Balance),
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

// MovementResponse represents a ledger movement in API responses.
type MovementResponse struct {
	ID          string    `json:"id"`
	TokenID     string    `json:"token_id"`
	Kind        string    `json:"kind"`
	Amount      string    `json:"amount"`
	ReferenceID *string   `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListMovementsResponse wraps a page of movements.
type ListMovementsResponse struct {
	Data []MovementResponse `json:"data"`
}

// MapMovementsToListResponse converts domain movements to a list response.
func MapMovementsToListResponse(movements []*ledgerDomain.Movement) ListMovementsResponse {
	data := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		item := MovementResponse{
			ID:        m.ID.String(),
			TokenID:   m.TokenID.String(),
			Kind:      string(m.Kind),
			Amount:    tokenDomain.FormatAmount(m.Amount),
			CreatedAt: m.CreatedAt,
		}
		if m.ReferenceID != nil {
			ref := m.ReferenceID.String()
			item.ReferenceID = &ref
		}
		data = append(data, item)
	}
	return ListMovementsResponse{Data: data}
}
