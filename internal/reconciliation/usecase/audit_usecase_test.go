package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	"github.com/allisson/offcash/internal/reconciliation/service"
	reconciliationMocks "github.com/allisson/offcash/internal/reconciliation/usecase/mocks"
)

func signedAudit(t *testing.T, signer service.AuditSigner) *reconciliationDomain.DoubleSpendAudit {
	t.Helper()
	audit := &reconciliationDomain.DoubleSpendAudit{
		ID:                 uuid.Must(uuid.NewV7()),
		TokenID:            uuid.Must(uuid.NewV7()),
		ConflictingTokenID: uuid.Must(uuid.NewV7()),
		AccountID:          uuid.Must(uuid.NewV7()),
		Claim:              `{"token":{}}`,
		Reason:             "token already spent",
		CreatedAt:          time.Now().UTC().Truncate(time.Microsecond),
	}
	sig, err := signer.Sign(audit)
	require.NoError(t, err)
	audit.Signature = sig
	return audit
}

func TestAuditUseCase_List(t *testing.T) {
	ctx := context.Background()
	signer := service.NewAuditSigner([]byte("secret"))
	repo := &reconciliationMocks.MockAuditRepository{}
	audits := []*reconciliationDomain.DoubleSpendAudit{signedAudit(t, signer)}
	repo.On("List", ctx, 0, 50).Return(audits, nil).Once()

	got, err := NewAuditUseCase(repo, signer).List(ctx, 0, 50)

	require.NoError(t, err)
	assert.Equal(t, audits, got)
	repo.AssertExpectations(t)
}

func TestAuditUseCase_Verify(t *testing.T) {
	ctx := context.Background()
	signer := service.NewAuditSigner([]byte("secret"))

	t.Run("Success_ReportsTamperedRecords", func(t *testing.T) {
		repo := &reconciliationMocks.MockAuditRepository{}
		valid := signedAudit(t, signer)
		tampered := signedAudit(t, signer)
		tampered.Reason = "nothing happened"
		repo.On("List", ctx, 0, verifyPageSize).
			Return([]*reconciliationDomain.DoubleSpendAudit{valid, tampered}, nil).Once()

		report, err := NewAuditUseCase(repo, signer).Verify(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(2), report.TotalChecked)
		assert.Equal(t, int64(1), report.ValidCount)
		assert.Equal(t, int64(1), report.InvalidCount)
		assert.Equal(t, []uuid.UUID{tampered.ID}, report.InvalidAudits)
	})

	t.Run("Success_Paginates", func(t *testing.T) {
		repo := &reconciliationMocks.MockAuditRepository{}
		page := make([]*reconciliationDomain.DoubleSpendAudit, verifyPageSize)
		audit := signedAudit(t, signer)
		for i := range page {
			page[i] = audit
		}
		repo.On("List", ctx, 0, verifyPageSize).Return(page, nil).Once()
		repo.On("List", ctx, verifyPageSize, verifyPageSize).
			Return([]*reconciliationDomain.DoubleSpendAudit{}, nil).Once()

		report, err := NewAuditUseCase(repo, signer).Verify(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(verifyPageSize), report.ValidCount)
		repo.AssertExpectations(t)
	})

	t.Run("Error_Repository", func(t *testing.T) {
		repo := &reconciliationMocks.MockAuditRepository{}
		repo.On("List", mock.Anything, 0, verifyPageSize).Return(nil, errors.New("db down")).Once()

		report, err := NewAuditUseCase(repo, signer).Verify(ctx)

		assert.Error(t, err)
		assert.Nil(t, report)
	})
}
