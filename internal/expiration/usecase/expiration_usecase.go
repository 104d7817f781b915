package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	expirationDomain "github.com/allisson/offcash/internal/expiration/domain"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// Config holds expiration sweep configuration.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// expirationUseCase implements ExpirationUseCase.
type expirationUseCase struct {
	config       Config
	txManager    database.TxManager
	issuedRepo   IssuedTokenRepository
	allocRepo    AllocationRepository
	accountRepo  AccountRepository
	movementRepo MovementRepository
	logger       *slog.Logger
}

// Sweep processes expired records in batches, one transaction per batch. Rows locked by a
// concurrent sweep are skipped, and the guarded status update plus the unique refund movement
// keep a second run from refunding again.
func (e *expirationUseCase) Sweep(ctx context.Context, now time.Time) (*expirationDomain.SweepReport, error) {
	now = now.UTC()
	report := &expirationDomain.SweepReport{Refunded: decimal.Zero}

	for {
		var fetched int
		err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
			records, err := e.issuedRepo.ListExpired(ctx, now, e.config.BatchSize)
			if err != nil {
				return err
			}
			fetched = len(records)
			for _, record := range records {
				if err := e.reclaim(ctx, record, now, report); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if fetched < e.config.BatchSize {
			break
		}
	}

	if report.Total() > 0 {
		e.logger.InfoContext(ctx, "expiration sweep completed",
			slog.Int("expired", report.Expired),
			slog.Int("settled", report.Settled),
			slog.String("refunded", tokenDomain.FormatAmount(report.Refunded)),
		)
	}
	return report, nil
}

func (e *expirationUseCase) reclaim(
	ctx context.Context,
	record *ledgerDomain.IssuedToken,
	now time.Time,
	report *expirationDomain.SweepReport,
) error {
	remainder := record.Amount
	allocation, err := e.allocRepo.GetForUpdate(ctx, record.ID)
	switch {
	case err == nil:
		remainder = allocation.Remaining()
		if err := e.allocRepo.Close(ctx, record.ID, now); err != nil {
			return err
		}
	case !apperrors.Is(err, reconciliationDomain.ErrAllocationNotFound):
		return err
	}

	next := tokenDomain.StatusExpired
	if !remainder.IsPositive() {
		next = tokenDomain.StatusRedeemed
	}
	moved, err := e.issuedRepo.UpdateStatus(ctx, record.ID, tokenDomain.StatusActive, next, now)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	if next == tokenDomain.StatusRedeemed {
		report.Settled++
		return nil
	}

	if err := e.accountRepo.Credit(ctx, record.AccountID, remainder); err != nil {
		return err
	}
	refund := ledgerDomain.NewMovement(
		record.AccountID,
		record.ID,
		ledgerDomain.MovementExpiryRefund,
		remainder,
		nil,
		now,
	)
	if err := e.movementRepo.Create(ctx, refund); err != nil {
		return err
	}

	report.Expired++
	report.Refunded = report.Refunded.Add(remainder)
	return nil
}

// Count returns the number of records awaiting a sweep.
func (e *expirationUseCase) Count(ctx context.Context, now time.Time) (int64, error) {
	return e.issuedRepo.CountExpired(ctx, now.UTC())
}

// Start runs Sweep on every tick.
func (e *expirationUseCase) Start(ctx context.Context) error {
	e.logger.Info("starting expiration sweeper",
		slog.Duration("interval", e.config.Interval),
		slog.Int("batch_size", e.config.BatchSize),
	)

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("stopping expiration sweeper")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.Sweep(ctx, time.Now()); err != nil {
				e.logger.Error("failed to sweep expired tokens", slog.Any("error", err))
			}
		}
	}
}

// NewExpirationUseCase creates a new ExpirationUseCase.
func NewExpirationUseCase(
	config Config,
	txManager database.TxManager,
	issuedRepo IssuedTokenRepository,
	allocRepo AllocationRepository,
	accountRepo AccountRepository,
	movementRepo MovementRepository,
	logger *slog.Logger,
) ExpirationUseCase {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &expirationUseCase{
		config:       config,
		txManager:    txManager,
		issuedRepo:   issuedRepo,
		allocRepo:    allocRepo,
		accountRepo:  accountRepo,
		movementRepo: movementRepo,
		logger:       logger,
	}
}
