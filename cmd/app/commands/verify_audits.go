package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	reconciliationUseCase "github.com/allisson/offcash/internal/reconciliation/usecase"
)

// RunVerifyAudits checks the signature of every double-spend audit record.
// Returns an error if any record fails verification so scripts can alert on the exit code.
//
// Requirements: Database must be migrated and AUDIT_SIGNING_KEY must match the key used at write time.
func RunVerifyAudits(
	ctx context.Context,
	auditUseCase reconciliationUseCase.AuditUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("verifying double spend audits")

	report, err := auditUseCase.Verify(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify audits: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]interface{}{
			"total_checked":  report.TotalChecked,
			"valid_count":    report.ValidCount,
			"invalid_count":  report.InvalidCount,
			"invalid_audits": report.InvalidAudits,
			"passed":         report.InvalidCount == 0,
		}); err != nil {
			return err
		}
	} else {
		outputVerifyAuditsText(writer, report)
	}

	logger.Info("verification completed",
		slog.Int64("total_checked", report.TotalChecked),
		slog.Int64("valid", report.ValidCount),
		slog.Int64("invalid", report.InvalidCount),
	)

	if report.InvalidCount > 0 {
		return fmt.Errorf("integrity check failed: %d invalid signature(s)", report.InvalidCount)
	}

	return nil
}

func outputVerifyAuditsText(writer io.Writer, report *reconciliationDomain.VerificationReport) {
	_, _ = fmt.Fprintf(writer, "Double Spend Audit Verification\n")
	_, _ = fmt.Fprintf(writer, "===============================\n\n")
	_, _ = fmt.Fprintf(writer, "Total Checked:  %d\n", report.TotalChecked)
	_, _ = fmt.Fprintf(writer, "Valid:          %d\n", report.ValidCount)
	_, _ = fmt.Fprintf(writer, "Invalid:        %d\n\n", report.InvalidCount)

	switch {
	case report.InvalidCount > 0:
		_, _ = fmt.Fprintf(writer, "WARNING: %d audit(s) failed integrity check!\n\n", report.InvalidCount)
		_, _ = fmt.Fprintf(writer, "Invalid Audit IDs:\n")
		for _, id := range report.InvalidAudits {
			_, _ = fmt.Fprintf(writer, "  - %s\n", id)
		}
		_, _ = fmt.Fprintf(writer, "\nStatus: FAILED\n")
	case report.TotalChecked == 0:
		_, _ = fmt.Fprintf(writer, "Status: No audits recorded\n")
	default:
		_, _ = fmt.Fprintf(writer, "Status: PASSED\n")
	}
}
