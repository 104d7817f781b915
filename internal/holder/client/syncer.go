package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	cryptoService "github.com/allisson/offcash/internal/crypto/service"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	"github.com/allisson/offcash/internal/holder/store"
	keyregistryDTO "github.com/allisson/offcash/internal/keyregistry/http/dto"
	reconciliationDTO "github.com/allisson/offcash/internal/reconciliation/http/dto"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// Authority is the part of the authority API the Syncer needs.
type Authority interface {
	Redeem(
		ctx context.Context,
		accountID uuid.UUID,
		claims []tokenDomain.RedemptionClaim,
	) ([]tokenDomain.RedemptionResult, error)
	PublicKey(ctx context.Context, keyType string, identifier string) (*keyregistryDTO.PublicKeyResponse, error)
	Issue(
		ctx context.Context,
		accountID uuid.UUID,
		holder cryptoDomain.PublicKey,
		amount decimal.Decimal,
		validity time.Duration,
	) ([]tokenDomain.Token, error)
}

// SyncReport summarizes one sync.
type SyncReport struct {
	Expired   int
	Submitted int
	Redeemed  int
	Rejected  int
	Invalid   int
}

// Syncer reconciles the holder store with the authority.
type Syncer struct {
	store       *store.Store
	authority   Authority
	codec       cryptoService.SignatureCodec
	key         *cryptoDomain.PrivateKey
	accountID   uuid.UUID
	issuerKeyID string
	logger      *slog.Logger
}

// NewSyncer creates a Syncer redeeming into accountID.
func NewSyncer(
	holderStore *store.Store,
	authority Authority,
	codec cryptoService.SignatureCodec,
	key *cryptoDomain.PrivateKey,
	accountID uuid.UUID,
	issuerKeyID string,
	logger *slog.Logger,
) *Syncer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Syncer{
		store:       holderStore,
		authority:   authority,
		codec:       codec,
		key:         key,
		accountID:   accountID,
		issuerKeyID: issuerKeyID,
		logger:      logger,
	}
}

// RefreshIssuerKey fetches the issuer key and caches it for offline verification.
func (s *Syncer) RefreshIssuerKey(ctx context.Context) error {
	resp, err := s.authority.PublicKey(ctx, "issuer", s.issuerKeyID)
	if err != nil {
		return err
	}
	publicKey, err := cryptoDomain.ParsePublicKey(resp.PublicKey)
	if err != nil {
		return err
	}
	return s.store.SetIssuerKey(holderDomain.IssuerKey{
		Identifier: resp.Identifier,
		PublicKey:  publicKey,
		ExpiresAt:  resp.ExpiresAt,
		FetchedAt:  time.Now().UTC(),
	})
}

// Sync expires stale local tokens, refreshes the issuer key, submits every spendable token and
// applies the authority's verdicts. A failure to refresh the key keeps the cached one.
func (s *Syncer) Sync(ctx context.Context, now time.Time) (*SyncReport, error) {
	report := &SyncReport{}

	expired, err := s.store.ExpireStale(now)
	if err != nil {
		return nil, err
	}
	report.Expired = expired

	if err := s.RefreshIssuerKey(ctx); err != nil {
		s.logger.WarnContext(ctx, "issuer key refresh failed, keeping cached key", slog.Any("error", err))
	}

	claims, err := s.store.Claims(s.codec, s.key, s.accountID, now)
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(claims); start += reconciliationDTO.MaxClaimsPerRequest {
		end := min(start+reconciliationDTO.MaxClaimsPerRequest, len(claims))
		results, err := s.authority.Redeem(ctx, s.accountID, claims[start:end])
		if err != nil {
			return report, err
		}
		report.Submitted += end - start

		for _, result := range results {
			if err := s.store.ApplyRedemptionResult(result); err != nil {
				return report, err
			}
			switch result.Outcome {
			case tokenDomain.OutcomeRedeemed:
				report.Redeemed++
			case tokenDomain.OutcomeDoubleSpendRejected:
				report.Rejected++
				s.logger.WarnContext(ctx, "token rejected as double spend",
					slog.String("token_id", result.TokenID.String()),
					slog.String("amount", tokenDomain.FormatAmount(result.Amount)),
				)
			default:
				report.Invalid++
				s.logger.WarnContext(ctx, "token claim invalid",
					slog.String("token_id", result.TokenID.String()),
					slog.String("reason", result.Reason),
				)
			}
		}
	}
	return report, nil
}

// Withdraw issues amount from the account to this device. Every token is checked against the
// issuer key and the device key before it is stored; nothing is stored if one fails.
func (s *Syncer) Withdraw(
	ctx context.Context,
	amount decimal.Decimal,
	validity time.Duration,
	now time.Time,
) ([]holderDomain.Holding, error) {
	if err := s.RefreshIssuerKey(ctx); err != nil {
		s.logger.WarnContext(ctx, "issuer key refresh failed, keeping cached key", slog.Any("error", err))
	}
	issuerKey, err := s.store.IssuerKey()
	if err != nil {
		return nil, err
	}

	tokens, err := s.authority.Issue(ctx, s.accountID, s.key.PublicKey(), amount, validity)
	if err != nil {
		return nil, err
	}

	holdings := make([]holderDomain.Holding, 0, len(tokens))
	for i := range tokens {
		tok := tokens[i]
		if !tok.OwnerPublicKey.Equal(s.key.PublicKey()) {
			return nil, holderDomain.ErrTokenNotOwned
		}
		if err := tokenDomain.VerifyLineage(s.codec, issuerKey.PublicKey, &tok, nil, now); err != nil {
			s.logger.ErrorContext(ctx, "issued token failed verification",
				slog.String("token_id", tok.ID.String()),
				slog.Any("error", err),
			)
			return nil, err
		}
		holdings = append(holdings, holderDomain.Holding{Token: tok, UpdatedAt: now})
	}

	if err := s.store.Add(holdings...); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tokens withdrawn",
		slog.Int("count", len(holdings)),
		slog.String("amount", tokenDomain.FormatAmount(amount)),
	)
	return holdings, nil
}
