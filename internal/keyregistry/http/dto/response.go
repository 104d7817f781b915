package dto

import (
	"time"

	keyregistryDomain "github.com/allisson/offcash/internal/keyregistry/domain"
)

// PublicKeyResponse represents a registered key in API responses.
type PublicKeyResponse struct {
	Type       string     `json:"type"`
	Identifier string     `json:"identifier"`
	PublicKey  string     `json:"public_key"`
	Address    string     `json:"address"`
	ExpiresAt  *time.Time `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MapKeyToResponse converts a registered key to an API response.
func MapKeyToResponse(key *keyregistryDomain.RegisteredKey) PublicKeyResponse {
	return PublicKeyResponse{
		Type:       string(key.KeyType),
		Identifier: key.Identifier,
		PublicKey:  key.PublicKey.String(),
		Address:    key.PublicKey.Address(),
		ExpiresAt:  key.ExpiresAt,
		CreatedAt:  key.CreatedAt,
	}
}
