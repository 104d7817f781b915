package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
)

func TestPublicKey(t *testing.T) {
	key, err := cryptoDomain.GeneratePrivateKey()
	require.NoError(t, err)

	assert.NoError(t, PublicKey.Validate(key.PublicKey().String()))
	assert.NoError(t, PublicKey.Validate(""))
	assert.Error(t, PublicKey.Validate("not-base58-0OIl"))
	assert.Error(t, PublicKey.Validate("3mJr7AoUXx2Wqd"))
	assert.Error(t, PublicKey.Validate(42))
}

func TestDecimalAmount(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		shouldErr bool
	}{
		{name: "whole amount", input: "100", shouldErr: false},
		{name: "two decimals", input: "12.34", shouldErr: false},
		{name: "empty left to required", input: "", shouldErr: false},
		{name: "three decimals", input: "0.001", shouldErr: true},
		{name: "zero", input: "0", shouldErr: true},
		{name: "negative", input: "-1.00", shouldErr: true},
		{name: "not a number", input: "ten", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DecimalAmount.Validate(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUUID(t *testing.T) {
	assert.NoError(t, UUID.Validate(uuid.Must(uuid.NewV7()).String()))
	assert.Error(t, UUID.Validate("1234"))
}
