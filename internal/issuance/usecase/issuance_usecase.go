package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	"github.com/allisson/offcash/internal/database"
	issuanceDomain "github.com/allisson/offcash/internal/issuance/domain"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// maxBatchTokens bounds how many tokens a single issue request may produce.
const maxBatchTokens = 100

// Config holds issuer policy.
type Config struct {
	DefaultValidity time.Duration
	MaxValidity     time.Duration
	Denominations   []decimal.Decimal
}

// issuanceUseCase implements IssuanceUseCase.
type issuanceUseCase struct {
	config       Config
	txManager    database.TxManager
	signer       tokenDomain.Signer
	issuerKey    *cryptoDomain.PrivateKey
	accountRepo  AccountRepository
	issuedRepo   IssuedTokenRepository
	movementRepo MovementRepository
	allocRepo    AllocationRepository
	now          func() time.Time
}

// Issue debits the account and mints a single token in one transaction.
func (i *issuanceUseCase) Issue(
	ctx context.Context,
	input issuanceDomain.IssueInput,
) (*tokenDomain.Token, error) {
	tokens, err := i.issue(ctx, input, []decimal.Decimal{input.Amount})
	if err != nil {
		return nil, err
	}
	return &tokens[0], nil
}

// IssueBatch debits the account once and mints one token per denomination part.
func (i *issuanceUseCase) IssueBatch(
	ctx context.Context,
	input issuanceDomain.IssueInput,
) ([]tokenDomain.Token, error) {
	if err := input.Validate(i.config.MaxValidity); err != nil {
		return nil, err
	}
	parts, err := issuanceDomain.Split(input.Amount, i.config.Denominations, maxBatchTokens)
	if err != nil {
		return nil, err
	}
	return i.issue(ctx, input, parts)
}

func (i *issuanceUseCase) issue(
	ctx context.Context,
	input issuanceDomain.IssueInput,
	parts []decimal.Decimal,
) ([]tokenDomain.Token, error) {
	if err := input.Validate(i.config.MaxValidity); err != nil {
		return nil, err
	}
	validity := input.Validity
	if validity == 0 {
		validity = i.config.DefaultValidity
	}

	now := i.now()
	tokens := make([]tokenDomain.Token, 0, len(parts))
	for _, part := range parts {
		tok, err := tokenDomain.NewRootToken(part, input.HolderPublicKey, now, validity)
		if err != nil {
			return nil, err
		}
		if err := tok.Sign(i.signer, i.issuerKey); err != nil {
			return nil, err
		}
		tokens = append(tokens, *tok)
	}

	err := i.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := i.accountRepo.Debit(ctx, input.AccountID, input.Amount); err != nil {
			return err
		}
		for idx := range tokens {
			if err := i.record(ctx, input.AccountID, &tokens[idx], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (i *issuanceUseCase) record(
	ctx context.Context,
	accountID uuid.UUID,
	tok *tokenDomain.Token,
	now time.Time,
) error {
	if err := i.issuedRepo.Create(ctx, ledgerDomain.NewIssuedToken(accountID, tok)); err != nil {
		return err
	}
	allocation := reconciliationDomain.NewAllocation(tok.ID, tok.ID, tok.Amount, now)
	if err := i.allocRepo.Create(ctx, allocation); err != nil {
		return err
	}
	movement := ledgerDomain.NewMovement(accountID, tok.ID, ledgerDomain.MovementIssueDebit, tok.Amount, nil, now)
	return i.movementRepo.Create(ctx, movement)
}

// IssuerPublicKey returns the public half of the issuer key.
func (i *issuanceUseCase) IssuerPublicKey() cryptoDomain.PublicKey {
	return i.issuerKey.PublicKey()
}

// NewIssuanceUseCase creates a new IssuanceUseCase.
func NewIssuanceUseCase(
	config Config,
	txManager database.TxManager,
	signer tokenDomain.Signer,
	issuerKey *cryptoDomain.PrivateKey,
	accountRepo AccountRepository,
	issuedRepo IssuedTokenRepository,
	movementRepo MovementRepository,
	allocRepo AllocationRepository,
) IssuanceUseCase {
	return &issuanceUseCase{
		config:       config,
		txManager:    txManager,
		signer:       signer,
		issuerKey:    issuerKey,
		accountRepo:  accountRepo,
		issuedRepo:   issuedRepo,
		movementRepo: movementRepo,
		allocRepo:    allocRepo,
		now:          time.Now,
	}
}
