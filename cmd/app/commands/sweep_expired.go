package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	expirationUseCase "github.com/allisson/offcash/internal/expiration/usecase"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// RunSweepExpired closes every issuance record expired at now and refunds unredeemed value to
// the funding accounts. Supports dry-run mode to preview the count and both text/JSON output formats.
//
// Requirements: Database must be migrated and accessible.
func RunSweepExpired(
	ctx context.Context,
	expirationUseCase expirationUseCase.ExpirationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	now time.Time,
	dryRun bool,
	format string,
) error {
	logger.Info("sweeping expired tokens",
		slog.Time("now", now),
		slog.Bool("dry_run", dryRun),
	)

	if dryRun {
		count, err := expirationUseCase.Count(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to count expired tokens: %w", err)
		}

		if format == "json" {
			return writeJSON(writer, map[string]interface{}{
				"count":   count,
				"dry_run": true,
			})
		}
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would close %d expired issuance record(s)\n", count)
		return nil
	}

	report, err := expirationUseCase.Sweep(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to sweep expired tokens: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]interface{}{
			"expired":  report.Expired,
			"settled":  report.Settled,
			"refunded": tokenDomain.FormatAmount(report.Refunded),
			"dry_run":  false,
		}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Closed %d expired issuance record(s)\n", report.Total())
		_, _ = fmt.Fprintf(writer, "Refunded:  %d (%s)\n", report.Expired, tokenDomain.FormatAmount(report.Refunded))
		_, _ = fmt.Fprintf(writer, "Settled:   %d\n", report.Settled)
	}

	logger.Info("sweep completed",
		slog.Int("expired", report.Expired),
		slog.Int("settled", report.Settled),
		slog.String("refunded", tokenDomain.FormatAmount(report.Refunded)),
	)

	return nil
}
