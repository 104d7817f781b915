package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/metrics"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// reconciliationUseCaseWithMetrics decorates ReconciliationUseCase with metrics instrumentation.
type reconciliationUseCaseWithMetrics struct {
	next    ReconciliationUseCase
	metrics metrics.BusinessMetrics
}

// NewReconciliationUseCaseWithMetrics wraps a ReconciliationUseCase with metrics recording.
// Besides the batch duration, one operation is recorded per claim labelled with its outcome.
func NewReconciliationUseCaseWithMetrics(
	useCase ReconciliationUseCase,
	m metrics.BusinessMetrics,
) ReconciliationUseCase {
	return &reconciliationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Redeem records metrics for redemption batches.
func (r *reconciliationUseCaseWithMetrics) Redeem(
	ctx context.Context,
	accountID uuid.UUID,
	claims []tokenDomain.RedemptionClaim,
) ([]tokenDomain.RedemptionResult, error) {
	start := time.Now()
	results, err := r.next.Redeem(ctx, accountID, claims)

	status := "success"
	if err != nil {
		status = "error"
	}

	for i := range results {
		r.metrics.RecordOperation(ctx, "reconciliation", "claim", string(results[i].Outcome))
	}
	r.metrics.RecordOperation(ctx, "reconciliation", "redeem", status)
	r.metrics.RecordDuration(ctx, "reconciliation", "redeem", time.Since(start), status)

	return results, err
}
