package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: "100", want: "100.00"},
		{name: "two decimals", input: "0.01", want: "0.01"},
		{name: "trailing zeros", input: "12.5000", want: "12.50"},
		{name: "too precise", input: "0.001", wantErr: true},
		{name: "zero", input: "0", wantErr: true},
		{name: "negative", input: "-5", wantErr: true},
		{name: "garbage", input: "ten", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatAmount(got))
		})
	}
}

func TestSumAmounts(t *testing.T) {
	tokens := []Token{
		{Amount: decimal.RequireFromString("0.10")},
		{Amount: decimal.RequireFromString("0.20")},
		{Amount: decimal.RequireFromString("99.70")},
	}
	assert.True(t, SumAmounts(tokens).Equal(decimal.NewFromInt(100)))
	assert.True(t, SumAmounts(nil).IsZero())
}

func TestStatus(t *testing.T) {
	assert.NoError(t, StatusActive.Validate())
	assert.ErrorIs(t, Status("spent").Validate(), ErrInvalidStatus)

	assert.True(t, StatusRedeemed.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.True(t, StatusDoubleSpendFlagged.IsTerminal())
	assert.False(t, StatusDivided.IsTerminal())

	assert.True(t, StatusActive.CanTransitionTo(StatusTransferred))
	assert.True(t, StatusRedeemed.CanTransitionTo(StatusRedeemed))
	assert.False(t, StatusRedeemed.CanTransitionTo(StatusActive))
	assert.False(t, StatusTransferred.CanTransitionTo(StatusActive))
	assert.True(t, StatusDivided.CanTransitionTo(StatusExpired))
}
