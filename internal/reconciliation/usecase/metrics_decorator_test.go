package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/offcash/internal/metrics"
	reconciliationMocks "github.com/allisson/offcash/internal/reconciliation/usecase/mocks"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

func TestMetricsDecorator_Redeem(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.Must(uuid.NewV7())

	t.Run("Success_RecordsOutcomePerClaim", func(t *testing.T) {
		next := &reconciliationMocks.MockReconciliationUseCase{}
		m := &mockBusinessMetrics{}
		results := []tokenDomain.RedemptionResult{
			{Outcome: tokenDomain.OutcomeRedeemed},
			{Outcome: tokenDomain.OutcomeDoubleSpendRejected},
		}
		next.On("Redeem", ctx, accountID, mock.Anything).Return(results, nil).Once()
		m.On("RecordOperation", ctx, "reconciliation", "claim", "redeemed").Once()
		m.On("RecordOperation", ctx, "reconciliation", "claim", "double-spend-rejected").Once()
		m.On("RecordOperation", ctx, "reconciliation", "redeem", "success").Once()
		m.On("RecordDuration", ctx, "reconciliation", "redeem", mock.AnythingOfType("time.Duration"), "success").Once()

		got, err := NewReconciliationUseCaseWithMetrics(next, m).Redeem(ctx, accountID, nil)

		assert.NoError(t, err)
		assert.Equal(t, results, got)
		m.AssertExpectations(t)
	})

	t.Run("Error_RecordsErrorStatus", func(t *testing.T) {
		next := &reconciliationMocks.MockReconciliationUseCase{}
		m := &mockBusinessMetrics{}
		next.On("Redeem", ctx, accountID, mock.Anything).Return(nil, errors.New("boom")).Once()
		m.On("RecordOperation", ctx, "reconciliation", "redeem", "error").Once()
		m.On("RecordDuration", ctx, "reconciliation", "redeem", mock.AnythingOfType("time.Duration"), "error").Once()

		_, err := NewReconciliationUseCaseWithMetrics(next, m).Redeem(ctx, accountID, nil)

		assert.Error(t, err)
		m.AssertExpectations(t)
	})
}
