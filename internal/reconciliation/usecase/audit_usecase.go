package usecase

import (
	"context"

	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	"github.com/allisson/offcash/internal/reconciliation/service"
)

const verifyPageSize = 500

// auditUseCase implements AuditUseCase.
type auditUseCase struct {
	auditRepo   AuditRepository
	auditSigner service.AuditSigner
}

// List returns audits oldest first.
func (a *auditUseCase) List(
	ctx context.Context,
	offset, limit int,
) ([]*reconciliationDomain.DoubleSpendAudit, error) {
	return a.auditRepo.List(ctx, offset, limit)
}

// Verify walks the whole audit table page by page.
func (a *auditUseCase) Verify(ctx context.Context) (*reconciliationDomain.VerificationReport, error) {
	report := &reconciliationDomain.VerificationReport{}
	for offset := 0; ; offset += verifyPageSize {
		audits, err := a.auditRepo.List(ctx, offset, verifyPageSize)
		if err != nil {
			return nil, err
		}
		for _, audit := range audits {
			report.TotalChecked++
			if err := a.auditSigner.Verify(audit); err != nil {
				report.InvalidCount++
				report.InvalidAudits = append(report.InvalidAudits, audit.ID)
				continue
			}
			report.ValidCount++
		}
		if len(audits) < verifyPageSize {
			return report, nil
		}
	}
}

// NewAuditUseCase creates a new AuditUseCase.
func NewAuditUseCase(auditRepo AuditRepository, auditSigner service.AuditSigner) AuditUseCase {
	return &auditUseCase{
		auditRepo:   auditRepo,
		auditSigner: auditSigner,
	}
}
