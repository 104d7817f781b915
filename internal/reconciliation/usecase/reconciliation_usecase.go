package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	outboxDomain "github.com/allisson/offcash/internal/outbox/domain"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	"github.com/allisson/offcash/internal/reconciliation/service"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// conflictError carries the token whose spent marker or allocation rejected a claim. For an
// exhausted allocation, redemptionID is the first redemption that consumed it.
type conflictError struct {
	tokenID      uuid.UUID
	redemptionID *uuid.UUID
	err          error
}

func (e *conflictError) Error() string {
	return e.err.Error()
}

func (e *conflictError) Unwrap() error {
	return e.err
}

// Dependencies groups the collaborators of the reconciliation engine.
type Dependencies struct {
	TxManager      database.TxManager
	Verifier       tokenDomain.Verifier
	IssuerKey      cryptoDomain.PublicKey
	SpentRepo      SpentTokenRepository
	AllocationRepo AllocationRepository
	AuditRepo      AuditRepository
	AccountRepo    AccountRepository
	MovementRepo   MovementRepository
	IssuedRepo     IssuedTokenRepository
	OutboxRepo     OutboxEventRepository
	AuditSigner    service.AuditSigner
	Logger         *slog.Logger
}

// reconciliationUseCase implements ReconciliationUseCase.
type reconciliationUseCase struct {
	Dependencies
	now func() time.Time
}

// Redeem verifies all claims in parallel, then settles each one in its own transaction so a
// rejected claim never blocks the others. The spent marker insert and the conditional
// allocation updates are the only serialization points: the first committer wins.
func (r *reconciliationUseCase) Redeem(
	ctx context.Context,
	accountID uuid.UUID,
	claims []tokenDomain.RedemptionClaim,
) ([]tokenDomain.RedemptionResult, error) {
	now := r.now().UTC()

	verifyErrs := make([]error, len(claims))
	slots := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	for i := range claims {
		wg.Add(1)
		slots <- struct{}{}
		go func() {
			defer func() {
				<-slots
				wg.Done()
			}()
			verifyErrs[i] = claims[i].Verify(r.Verifier, r.IssuerKey, accountID)
		}()
	}
	wg.Wait()

	results := make([]tokenDomain.RedemptionResult, 0, len(claims))
	for i := range claims {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := r.redeemOne(ctx, accountID, &claims[i], verifyErrs[i], now)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *reconciliationUseCase) redeemOne(
	ctx context.Context,
	accountID uuid.UUID,
	claim *tokenDomain.RedemptionClaim,
	verifyErr error,
	now time.Time,
) (tokenDomain.RedemptionResult, error) {
	result := tokenDomain.RedemptionResult{
		TokenID:   claim.Token.ID,
		Amount:    claim.Token.Amount,
		SettledAt: now,
	}

	if verifyErr != nil {
		return r.invalid(ctx, result, verifyErr), nil
	}
	if claim.Token.IsExpired(now) {
		return r.invalid(ctx, result, tokenDomain.ErrTokenExpired), nil
	}

	redemptionID := uuid.Must(uuid.NewV7())
	err := r.TxManager.WithTx(ctx, func(ctx context.Context) error {
		return r.settle(ctx, accountID, claim, redemptionID, now)
	})

	switch {
	case err == nil:
		result.Outcome = tokenDomain.OutcomeRedeemed
		result.RedemptionID = &redemptionID
		return result, nil
	case apperrors.Is(err, apperrors.ErrDoubleSpend):
		var conflict *conflictError
		if !apperrors.As(err, &conflict) {
			conflict = &conflictError{tokenID: claim.Token.ID, err: err}
		}
		conflicting, err := r.conflictingRedemption(ctx, claim, conflict)
		if apperrors.Is(err, reconciliationDomain.ErrTokenIDCollision) {
			return r.invalid(ctx, result, err), nil
		}
		if err != nil {
			return result, err
		}
		if err := r.recordDoubleSpend(ctx, accountID, claim, conflict, conflicting, now); err != nil {
			return result, err
		}
		result.Outcome = tokenDomain.OutcomeDoubleSpendRejected
		result.Reason = conflict.Error()
		result.ConflictingRedemptionID = conflicting
		return result, nil
	case apperrors.Is(err, apperrors.ErrCryptographic), apperrors.Is(err, apperrors.ErrExpired):
		return r.invalid(ctx, result, err), nil
	default:
		return result, err
	}
}

func (r *reconciliationUseCase) invalid(
	ctx context.Context,
	result tokenDomain.RedemptionResult,
	reason error,
) tokenDomain.RedemptionResult {
	r.Logger.WarnContext(ctx, "redemption claim rejected",
		slog.String("token_id", result.TokenID.String()),
		slog.String("reason", reason.Error()),
	)
	result.Outcome = tokenDomain.OutcomeInvalid
	result.Reason = reason.Error()
	return result
}

// settle applies one verified claim. Locks are taken in a fixed order, the issuance record of
// the root first and then allocations root to leaf, so redemptions and the expiration sweep
// touching the same root never deadlock.
func (r *reconciliationUseCase) settle(
	ctx context.Context,
	accountID uuid.UUID,
	claim *tokenDomain.RedemptionClaim,
	redemptionID uuid.UUID,
	now time.Time,
) error {
	root := claim.Root()
	issued, err := r.IssuedRepo.GetForUpdate(ctx, root.ID)
	if err != nil {
		if apperrors.Is(err, ledgerDomain.ErrIssuedTokenNotFound) {
			return reconciliationDomain.ErrUnknownIssuance
		}
		return err
	}
	if issued.Status == tokenDomain.StatusExpired {
		return tokenDomain.ErrTokenExpired
	}

	spent := &reconciliationDomain.SpentToken{
		TokenID:      claim.Token.ID,
		RedemptionID: redemptionID,
		RootTokenID:  root.ID,
		AccountID:    accountID,
		Amount:       claim.Token.Amount,
		SpentAt:      now,
	}
	if err := r.SpentRepo.Create(ctx, spent); err != nil {
		if apperrors.Is(err, apperrors.ErrDoubleSpend) {
			return &conflictError{tokenID: claim.Token.ID, err: err}
		}
		return err
	}

	for _, tok := range claim.Chain() {
		allocation := reconciliationDomain.NewAllocation(tok.ID, root.ID, tok.Amount, now)
		if err := r.AllocationRepo.Ensure(ctx, allocation); err != nil {
			return err
		}
		ok, err := r.AllocationRepo.Consume(ctx, tok.ID, root.ID, claim.Token.Amount, redemptionID, now)
		if err != nil {
			return err
		}
		if !ok {
			return r.rejectConsume(ctx, tok.ID, root.ID)
		}
	}

	if err := r.AccountRepo.Credit(ctx, accountID, claim.Token.Amount); err != nil {
		return err
	}
	movement := ledgerDomain.NewMovement(
		accountID,
		claim.Token.ID,
		ledgerDomain.MovementRedeemCredit,
		claim.Token.Amount,
		&redemptionID,
		now,
	)
	if err := r.MovementRepo.Create(ctx, movement); err != nil {
		return err
	}

	rootAllocation, err := r.AllocationRepo.Get(ctx, root.ID)
	if err != nil {
		return err
	}
	if rootAllocation.IsExhausted() {
		if _, err := r.IssuedRepo.UpdateStatus(
			ctx,
			root.ID,
			tokenDomain.StatusActive,
			tokenDomain.StatusRedeemed,
			now,
		); err != nil {
			return err
		}
	}
	return nil
}

// rejectConsume explains a Consume that changed nothing. An allocation of tokenID recorded
// under another root means the id was not derived from this root.
func (r *reconciliationUseCase) rejectConsume(ctx context.Context, tokenID, rootTokenID uuid.UUID) error {
	allocation, err := r.AllocationRepo.Get(ctx, tokenID)
	if err != nil {
		return err
	}
	if allocation.RootTokenID != rootTokenID {
		return reconciliationDomain.ErrTokenIDCollision
	}
	return &conflictError{
		tokenID:      tokenID,
		redemptionID: allocation.FirstRedemptionID,
		err:          reconciliationDomain.ErrAllocationExhausted,
	}
}

// recordDoubleSpend stores a signed audit of the rejected claim together with a security
// event naming conflicting as the redemption that won.
func (r *reconciliationUseCase) recordDoubleSpend(
	ctx context.Context,
	accountID uuid.UUID,
	claim *tokenDomain.RedemptionClaim,
	conflict *conflictError,
	conflicting *uuid.UUID,
	now time.Time,
) error {
	claimJSON, err := json.Marshal(claim)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode claim")
	}

	audit := &reconciliationDomain.DoubleSpendAudit{
		ID:                      uuid.Must(uuid.NewV7()),
		TokenID:                 claim.Token.ID,
		ConflictingTokenID:      conflict.tokenID,
		ConflictingRedemptionID: conflicting,
		AccountID:               accountID,
		Claim:                   string(claimJSON),
		Reason:                  conflict.Error(),
		CreatedAt:               now.Truncate(time.Microsecond),
	}
	if audit.Signature, err = r.AuditSigner.Sign(audit); err != nil {
		return err
	}

	event, err := outboxDomain.NewOutboxEvent(reconciliationDomain.EventTypeDoubleSpend, reconciliationDomain.DoubleSpendEvent{
		AuditID:                 audit.ID,
		TokenID:                 claim.Token.ID,
		RootTokenID:             claim.Root().ID,
		ConflictingTokenID:      conflict.tokenID,
		ConflictingRedemptionID: conflicting,
		AccountID:               accountID,
		OwnerPublicKey:          claim.Token.OwnerPublicKey.String(),
		Amount:                  tokenDomain.FormatAmount(claim.Token.Amount),
		Reason:                  audit.Reason,
		DetectedAt:              audit.CreatedAt,
	})
	if err != nil {
		return err
	}

	err = r.TxManager.WithTx(ctx, func(ctx context.Context) error {
		if err := r.AuditRepo.Create(ctx, audit); err != nil {
			return err
		}
		return r.OutboxRepo.Create(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("failed to record double spend audit: %w", err)
	}

	r.Logger.WarnContext(ctx, "double spend rejected",
		slog.String("audit_id", audit.ID.String()),
		slog.String("token_id", claim.Token.ID.String()),
		slog.String("conflicting_token_id", conflict.tokenID.String()),
		slog.String("account_id", accountID.String()),
	)
	return nil
}

// conflictingRedemption returns the redemption that won against claim. A spent marker left by
// a token of another root yields ErrTokenIDCollision.
func (r *reconciliationUseCase) conflictingRedemption(
	ctx context.Context,
	claim *tokenDomain.RedemptionClaim,
	conflict *conflictError,
) (*uuid.UUID, error) {
	if !apperrors.Is(conflict.err, tokenDomain.ErrTokenAlreadySpent) {
		return conflict.redemptionID, nil
	}
	spent, err := r.SpentRepo.Get(ctx, claim.Token.ID)
	if err != nil {
		return nil, err
	}
	if spent.RootTokenID != claim.Root().ID {
		return nil, reconciliationDomain.ErrTokenIDCollision
	}
	return &spent.RedemptionID, nil
}

// NewReconciliationUseCase creates a new ReconciliationUseCase.
func NewReconciliationUseCase(deps Dependencies) ReconciliationUseCase {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &reconciliationUseCase{
		Dependencies: deps,
		now:          time.Now,
	}
}
