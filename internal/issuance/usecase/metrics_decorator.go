package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	issuanceDomain "github.com/allisson/offcash/internal/issuance/domain"
	"github.com/allisson/offcash/internal/metrics"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// issuanceUseCaseWithMetrics decorates IssuanceUseCase with metrics instrumentation.
type issuanceUseCaseWithMetrics struct {
	next    IssuanceUseCase
	metrics metrics.BusinessMetrics
}

// NewIssuanceUseCaseWithMetrics wraps an IssuanceUseCase with metrics recording.
func NewIssuanceUseCaseWithMetrics(useCase IssuanceUseCase, m metrics.BusinessMetrics) IssuanceUseCase {
	return &issuanceUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Issue records metrics for single token issuance.
func (i *issuanceUseCaseWithMetrics) Issue(
	ctx context.Context,
	input issuanceDomain.IssueInput,
) (*tokenDomain.Token, error) {
	start := time.Now()
	tok, err := i.next.Issue(ctx, input)

	status := "success"
	if err != nil {
		status = "error"
	}

	i.metrics.RecordOperation(ctx, "issuance", "token_issue", status)
	i.metrics.RecordDuration(ctx, "issuance", "token_issue", time.Since(start), status)

	return tok, err
}

// IssueBatch records metrics for denominated issuance.
func (i *issuanceUseCaseWithMetrics) IssueBatch(
	ctx context.Context,
	input issuanceDomain.IssueInput,
) ([]tokenDomain.Token, error) {
	start := time.Now()
	tokens, err := i.next.IssueBatch(ctx, input)

	status := "success"
	if err != nil {
		status = "error"
	}

	i.metrics.RecordOperation(ctx, "issuance", "token_issue_batch", status)
	i.metrics.RecordDuration(ctx, "issuance", "token_issue_batch", time.Since(start), status)

	return tokens, err
}

// IssuerPublicKey is not instrumented.
func (i *issuanceUseCaseWithMetrics) IssuerPublicKey() cryptoDomain.PublicKey {
	return i.next.IssuerPublicKey()
}
